package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sort"

	"wildwatch/internal/catalog"

	"gocv.io/x/gocv"
)

const (
	// DefaultInputSize is the square input the exported YOLOv8 graph expects.
	DefaultInputSize = 640
	// DefaultConfidenceThreshold matches the ultralytics predict default.
	DefaultConfidenceThreshold = 0.25
	// DefaultNMSThreshold matches the ultralytics predict default.
	DefaultNMSThreshold = 0.45

	// boxRows is the number of leading output rows holding cx, cy, w, h.
	boxRows = 4
)

var (
	ErrEmptyImage    = errors.New("decoded image is empty")
	ErrNetNotLoaded  = errors.New("detection network not initialized")
	ErrUnexpectedOut = errors.New("unexpected network output shape")
)

// Detection is one model output mapped onto the source frame.
type Detection struct {
	ClassID    int
	Label      string
	Confidence float64
	Box        image.Rectangle // pixel coordinates, clipped to the frame
}

// BBox returns the box as [x1, y1, x2, y2].
func (d Detection) BBox() [4]int {
	return [4]int{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y}
}

// Detector runs inference on a single BGR frame.
// Implementations are not required to be safe for concurrent use; see Pool.
type Detector interface {
	Detect(frame gocv.Mat) ([]Detection, error)
	Close() error
}

// Options tunes the YOLO pre- and post-processing.
type Options struct {
	InputSize           int
	ConfidenceThreshold float64
	NMSThreshold        float64
}

func (o Options) withDefaults() Options {
	if o.InputSize <= 0 {
		o.InputSize = DefaultInputSize
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if o.NMSThreshold <= 0 {
		o.NMSThreshold = DefaultNMSThreshold
	}
	return o
}

// YOLODetector runs a YOLOv8 ONNX export through the OpenCV DNN module.
type YOLODetector struct {
	net        gocv.Net
	catalog    *catalog.Catalog
	modelPath  string
	inputSize  int
	confidence float32
	nms        float32
}

// NewYOLODetector loads the ONNX model at modelPath.
func NewYOLODetector(modelPath string, cat *catalog.Catalog, opts Options) (*YOLODetector, error) {
	opts = opts.withDefaults()
	d := &YOLODetector{
		catalog:    cat,
		modelPath:  modelPath,
		inputSize:  opts.InputSize,
		confidence: float32(opts.ConfidenceThreshold),
		nms:        float32(opts.NMSThreshold),
	}

	if err := d.initializeNet(); err != nil {
		return nil, err
	}
	return d, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (d *YOLODetector) initializeNet() error {
	if _, err := os.Stat(d.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.modelPath)
	}

	net := gocv.ReadNetFromONNX(d.modelPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", d.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	d.net = net
	return nil
}

// Detect pads the frame to a square, runs the network and returns the
// detections that survive the confidence threshold and per-class NMS.
func (d *YOLODetector) Detect(frame gocv.Mat) ([]Detection, error) {
	if d.net.Empty() {
		return nil, ErrNetNotLoaded
	}
	if frame.Empty() {
		return nil, ErrEmptyImage
	}

	height, width := frame.Rows(), frame.Cols()
	maxDim := max(height, width)

	square := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), maxDim, maxDim, gocv.MatTypeCV8UC3)
	defer square.Close()
	roi := square.Region(image.Rect(0, 0, width, height))
	frame.CopyTo(&roi)
	roi.Close()

	blob := gocv.BlobFromImage(square, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// [1, 4+classes, anchors]
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= boxRows {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedOut, dims)
	}

	pred := output.Reshape(1, dims[1])
	defer pred.Close()

	scale := float32(maxDim) / float32(d.inputSize)
	return d.postprocess(pred, scale, image.Rect(0, 0, width, height)), nil
}

// postprocess turns a (4+classes) x anchors prediction matrix into detections.
func (d *YOLODetector) postprocess(pred gocv.Mat, scale float32, bounds image.Rectangle) []Detection {
	classes := pred.Rows() - boxRows
	anchors := pred.Cols()

	var (
		boxes    []image.Rectangle
		scores   []float32
		classIDs []int
		byClass  = map[int][]int{}
	)

	for i := 0; i < anchors; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < classes; c++ {
			if s := pred.GetFloatAt(boxRows+c, i); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || bestScore < d.confidence {
			continue
		}

		cx := pred.GetFloatAt(0, i)
		cy := pred.GetFloatAt(1, i)
		w := pred.GetFloatAt(2, i)
		h := pred.GetFloatAt(3, i)

		byClass[bestClass] = append(byClass[bestClass], len(boxes))
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*scale),
			int((cy-h/2)*scale),
			int((cx+w/2)*scale),
			int((cy+h/2)*scale),
		))
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	if len(boxes) == 0 {
		return []Detection{}
	}

	// NMS runs per class so boxes of different classes never suppress each other.
	var indices []int
	for _, members := range byClass {
		classBoxes := make([]image.Rectangle, len(members))
		classScores := make([]float32, len(members))
		for j, idx := range members {
			classBoxes[j] = boxes[idx]
			classScores[j] = scores[idx]
		}
		for _, kept := range gocv.NMSBoxes(classBoxes, classScores, d.confidence, d.nms) {
			indices = append(indices, members[kept])
		}
	}
	sort.SliceStable(indices, func(a, b int) bool {
		if scores[indices[a]] != scores[indices[b]] {
			return scores[indices[a]] > scores[indices[b]]
		}
		return indices[a] < indices[b]
	})

	results := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		box := boxes[idx].Intersect(bounds)
		if box.Empty() {
			continue
		}
		results = append(results, Detection{
			ClassID:    classIDs[idx],
			Label:      d.catalog.Label(classIDs[idx]),
			Confidence: float64(scores[idx]),
			Box:        box,
		})
	}
	return results
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	return d.net.Close()
}
