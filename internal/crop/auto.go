package crop

import (
	"context"
	"fmt"

	"photobooth/internal/geometry"
	"photobooth/internal/session"
)

// Auto crops a batch without user interaction: every image is cropped at the
// given zoom with the box centered. Zero zoom means the default.
func Auto(ctx context.Context, sess *session.Session, uploads []Upload, zoom float64, opts ...Option) error {
	cs, err := New(sess, uploads, opts...)
	if err != nil {
		return err
	}
	if zoom == 0 {
		zoom = geometry.DefaultZoom
	}
	if err := cs.Start(); err != nil {
		return err
	}
	for !cs.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cs.Zoom(zoom); err != nil {
			return err
		}
		st := cs.State()
		box := geometry.Center(st.Box, st.DisplayW, st.DisplayH)
		if err := cs.DragStart(st.Box.X, st.Box.Y); err != nil {
			return err
		}
		cs.DragMove(box.X, box.Y)
		cs.DragEnd()
		if err := cs.Confirm(); err != nil {
			return fmt.Errorf("crop %d: %w", cs.Index()+1, err)
		}
	}
	return nil
}
