package pipeline

import (
	"context"

	"fennec/internal/modelhost"
)

// faceHostAdapter adapts *modelhost.FaceDetector's []modelhost.FaceDetection
// return type to the pipeline package's own FaceDetection, so the Pipeline
// depends only on the narrow FaceHost contract and can be driven by a fake
// in tests without a modelhost.FaceDetector.
type faceHostAdapter struct {
	*modelhost.FaceDetector
}

// WrapFaceDetector adapts a real face detector Model Host for use as a
// Pipeline FaceHost.
func WrapFaceDetector(fd *modelhost.FaceDetector) FaceHost {
	return faceHostAdapter{fd}
}

func (a faceHostAdapter) Detect(ctx context.Context, imagePNG []byte) ([]FaceDetection, error) {
	detections, err := a.FaceDetector.Detect(ctx, imagePNG)
	if err != nil {
		return nil, err
	}
	out := make([]FaceDetection, len(detections))
	for i, d := range detections {
		out[i] = FaceDetection{X: d.X, Y: d.Y, W: d.W, H: d.H, Vector: d.Vector}
	}
	return out, nil
}
