package common

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// SwitchToFrame enters the frame f of the current document. Frames are
// expected to exist already, so a failure is not retried and yields a
// *FrameSwitchFailedError.
func (s *Session) SwitchToFrame(ctx context.Context, f FrameRef) error {
	ctx, span := s.startSpan(ctx, "session.switchToFrame", attribute.String("frame", f.String()))
	defer span.End()

	if err := s.driver.SwitchToFrame(ctx, f); err != nil {
		return spanRecordError(span, &FrameSwitchFailedError{Frame: f, Err: err})
	}
	s.inFrame = true
	s.logger.Debugf("Session:SwitchToFrame", "frame:%s", f)
	return nil
}

// SwitchToDefaultContent returns to the top-level document of the current
// window. It does nothing when the session is not inside a frame.
func (s *Session) SwitchToDefaultContent(ctx context.Context) error {
	if !s.inFrame {
		return nil
	}
	if err := s.driver.SwitchToDefaultContent(ctx); err != nil {
		return fmt.Errorf("switching to default content: %w", err)
	}
	s.inFrame = false
	s.logger.Debugf("Session:SwitchToDefaultContent", "back to top-level document")
	return nil
}

// InFrame reports whether the session is inside a frame.
func (s *Session) InFrame() bool { return s.inFrame }
