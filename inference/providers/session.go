// Package providers - Inference sessions.
package providers

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Session is an ONNX Runtime session with one preallocated float32 input and output.
type Session struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
	// Backend is the execution provider the session was built with.
	Backend ProviderBackend
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.Session != nil {
		if err := s.Session.Destroy(); err != nil {
			return errors.Wrap(err, "error destroying ORT session")
		}
		s.Session = nil
	}
	return nil
}

// NewSessionArgs represents the arguments for creating a new session.
type NewSessionArgs struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// LibraryPath is the ONNX Runtime shared library. Defaults to GetSharedLibPath.
	LibraryPath string
	// Height and Width fill the dynamic spatial dimensions of the model input and output.
	Height int
	Width  int
	// Preference lists execution providers in order. Defaults to DefaultPreference.
	Preference []ProviderBackend
	// Options carries per-backend settings.
	Options Options
	// IntraOpThreads bounds the threads used inside one operator. 0 lets the runtime decide.
	IntraOpThreads int
}

var envMu sync.Mutex

// InitializeEnvironment loads the ONNX Runtime shared library once per process.
//
// Arguments:
//   - libPath: The shared library path. Empty means GetSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or fails to load.
func InitializeEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s (set %s)", libPath, SharedLibEnv)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	log.Printf("✅ ONNX Runtime %s loaded from %s", ort.GetVersion(), libPath)
	return nil
}

// ResolveDims replaces the dynamic (-1) dimensions of an image tensor shape.
// A dynamic leading batch dimension becomes 1 and dynamic trailing spatial
// dimensions become height and width.
//
// Arguments:
//   - dims: The declared dimensions, e.g. [-1, 3, -1, -1].
//   - height: The spatial height.
//   - width: The spatial width.
//
// Returns:
//   - ort.Shape: The concrete shape.
//   - error: An error if a dimension other than batch or spatial is dynamic.
//
// Example:
//
//	shape, _ := ResolveDims(ort.NewShape(-1, 1, -1, -1), 384, 384) // [1 1 384 384]
func ResolveDims(dims ort.Shape, height, width int) (ort.Shape, error) {
	if len(dims) < 2 {
		return nil, fmt.Errorf("tensor rank %d is too small for an image", len(dims))
	}
	out := dims.Clone()
	n := len(out)
	for i, d := range out {
		if d > 0 {
			continue
		}
		switch {
		case i == n-1:
			out[i] = int64(width)
		case i == n-2:
			out[i] = int64(height)
		case i == 0:
			out[i] = 1
		default:
			return nil, fmt.Errorf("dimension %d of %v is dynamic", i, dims)
		}
	}
	return out, nil
}

// NewSession creates an ONNX Runtime session for a single-input, single-output
// image model.
//
// Order of operations:
//  1. Environment setup: loads the native runtime once per process.
//  2. Model inspection: discovers input and output names and shapes.
//  3. Tensor allocation: prepares fixed-shape buffers for input and output data.
//  4. Session creation, per execution provider in preference order: fresh
//     options, the provider, then the model with the tensors bound. A provider
//     whose session fails to load falls through to the next one.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session and its tensors. Callers must Close it.
//   - error: An error if any step fails.
func NewSession(args NewSessionArgs) (*Session, error) {
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model not found")
	}
	if err := InitializeEnvironment(args.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(args.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "error inspecting model")
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("expected one input and at least one output, got %d and %d", len(inputs), len(outputs))
	}

	inShape, err := ResolveDims(inputs[0].Dimensions, args.Height, args.Width)
	if err != nil {
		return nil, errors.Wrapf(err, "input %q", inputs[0].Name)
	}
	outShape, err := ResolveDims(outputs[0].Dimensions, args.Height, args.Width)
	if err != nil {
		return nil, errors.Wrapf(err, "output %q", outputs[0].Name)
	}

	input, err := ort.NewEmptyTensor[float32](inShape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	var session *ort.AdvancedSession
	backend, err := Resolve(args.Preference, func(b ProviderBackend) error {
		options, err := newSessionOptions(args.IntraOpThreads)
		if err != nil {
			return err
		}
		defer options.Destroy()

		if err := attachBackend(options, b, args.Options); err != nil {
			return err
		}
		// A provider can attach and still fail to load its runtime libraries here.
		s, err := ort.NewAdvancedSession(
			args.ModelPath,
			[]string{inputs[0].Name},
			[]string{outputs[0].Name},
			[]ort.ArbitraryTensor{input},
			[]ort.ArbitraryTensor{output},
			options,
		)
		if err != nil {
			return errors.Wrap(err, "error creating ORT session")
		}
		session = s
		return nil
	})
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}

	log.Printf("📦 Loaded %s: input %s%v, output %s%v", args.ModelPath, inputs[0].Name, inShape, outputs[0].Name, outShape)
	return &Session{Session: session, Input: input, Output: output, Backend: backend}, nil
}

// newSessionOptions creates session options with the shared tuning applied.
func newSessionOptions(intraOpThreads int) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	if err := options.SetIntraOpNumThreads(intraOpThreads); err != nil {
		log.Printf("⚠️ Failed to set intra-op threads: %v", err)
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		log.Printf("⚠️ Failed to set graph optimization level: %v", err)
	}
	return options, nil
}
