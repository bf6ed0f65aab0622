package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/jaki95/check-engine/internal/viewport"
)

// loadViewport sizes a viewport from the image header and the display flags
// and waits for it to become ready.
func loadViewport(ctx context.Context, data []byte) (viewport.State, error) {
	vp := viewport.New(cfg.Viewport.ReadyTimeout, func(s viewport.State) {
		slog.Debug("Viewport changed", "displayedWidth", s.DisplayedWidth, "displayedHeight", s.DisplayedHeight)
	})

	w, h, format, err := viewport.DecodeNaturalSize(bytes.NewReader(data))
	if err != nil {
		return viewport.State{}, err
	}
	slog.Debug("Image loaded", "format", format, "width", w, "height", h)
	vp.ImageLoaded(float64(w), float64(h))

	if annotateWidth > 0 || annotateHeight > 0 {
		dw, dh := float64(annotateWidth), float64(annotateHeight)
		switch {
		case dw == 0:
			dw = float64(w) * dh / float64(h)
		case dh == 0:
			dh = float64(h) * dw / float64(w)
		}
		vp.Resize(dw, dh)
	}

	state, err := vp.WaitReady(ctx)
	if err != nil {
		return viewport.State{}, fmt.Errorf("image never became ready: %w", err)
	}
	return state, nil
}
