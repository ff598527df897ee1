package main

import (
	"math"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
)

// demoSource draws a slowly hue-cycling circle. It stands in for the real
// animation pipeline so the streaming path can be exercised end to end.
type demoSource struct {
	durationUS uint32
	points     int
	phase      float64
}

func newDemoSource(fps int) *demoSource {
	if fps <= 0 {
		fps = 30
	}
	return &demoSource{
		durationUS: uint32(time.Second.Microseconds() / int64(fps)),
		points:     120,
	}
}

func (d *demoSource) NextFrame(now time.Time) show.Frame {
	d.phase += 0.5
	pts := make([]show.Point, d.points)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(d.points)
		hue := math.Mod(float64(i)/float64(d.points)*360+d.phase, 360)
		r, g, b := colorful.Hsv(hue, 1, 1).Clamped().RGB255()
		pts[i] = show.Point{
			X: 0.8 * math.Cos(a),
			Y: 0.8 * math.Sin(a),
			R: float64(r) / 255,
			G: float64(g) / 255,
			B: float64(b) / 255,
		}
	}
	return show.Frame{Points: pts, DurationUS: d.durationUS, Timestamp: now}
}
