package amp

import "testing"

func TestRenderMatchesBlockLoop(t *testing.T) {
	x := sine(1024, 196, 0.3, testRate)
	p := linearParams()

	a := newTestEngine(t, p, Options{})
	stageKernel(t, a, true, testKernelLeft)
	b := newTestEngine(t, p, Options{})
	stageKernel(t, b, true, testKernelLeft)

	var calls, last int
	out := a.Render([][]float64{x}, 128, 2, 300, func(done int) {
		calls++
		last = done
	})
	want := render(b, x, 128, 1)

	if len(out) != 2 || len(out[0]) != 1324 || len(out[1]) != 1324 {
		t.Fatalf("unexpected shape: %d channels, %d frames", len(out), len(out[0]))
	}
	if d := maxAbsDiff(out[0][:1024], want); d != 0 {
		t.Fatalf("render differs from block loop by %g", d)
	}
	if d := maxAbsDiff(out[0], out[1]); d != 0 {
		t.Fatalf("output channels differ by %g", d)
	}
	if calls != 11 || last != 1324 {
		t.Fatalf("onBlock calls=%d last=%d", calls, last)
	}
}

func TestRenderPadsShortInputs(t *testing.T) {
	p := linearParams()
	e := newTestEngine(t, p, Options{})
	left := sine(500, 110, 0.2, testRate)
	right := sine(400, 110, 0.2, testRate)

	out := e.Render([][]float64{left, right}, 128, 1, 0, nil)
	if len(out[0]) != 400 {
		t.Fatalf("frames = %d, want shortest input 400", len(out[0]))
	}

	silent := newTestEngine(t, p, Options{}).Render(nil, 64, 1, 100, nil)
	for i, v := range silent[0] {
		if v != 0 {
			t.Fatalf("sample %d = %g, want silence", i, v)
		}
	}
}
