// Package providers - ONNX Runtime execution provider selection.
package providers

import (
	"fmt"
	"log"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend names an ONNX Runtime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend is the default ONNX Runtime CPU provider. It is always available.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for inference.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// DefaultPreference is the provider order used when none is configured: GPU first, then CPU.
var DefaultPreference = []ProviderBackend{CUDAProviderBackend, CPUProviderBackend}

// ErrNoProvider is returned when no backend in a preference list could be attached.
var ErrNoProvider = errors.New("no execution provider available")

// ParseBackend converts a configuration string to a ProviderBackend.
//
// Arguments:
//   - s: The backend name, case-insensitive.
//
// Returns:
//   - ProviderBackend: The backend.
//   - error: An error if the name is unknown.
func ParseBackend(s string) (ProviderBackend, error) {
	switch b := ProviderBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend:
		return b, nil
	default:
		return "", fmt.Errorf("unknown execution provider %q", s)
	}
}

// Attacher brings up one backend, returning an error when the backend cannot
// serve. NewSession attaches the provider and loads the model inside it, so a
// provider that registers but fails at load time still counts as unavailable.
type Attacher func(backend ProviderBackend) error

// Resolve walks the preference list in order and returns the first backend the
// attacher accepts. Failures are logged and the next backend is tried.
//
// Arguments:
//   - preference: Backends in order of preference. Empty means DefaultPreference.
//   - attach: Enables a backend, returning an error when it is unavailable.
//
// Returns:
//   - ProviderBackend: The backend that was attached.
//   - error: A wrapped ErrNoProvider when every backend failed.
//
// Example:
//
//	backend, err := providers.Resolve(nil, func(b providers.ProviderBackend) error {
//	    return openSession(b)
//	})
func Resolve(preference []ProviderBackend, attach Attacher) (ProviderBackend, error) {
	if len(preference) == 0 {
		preference = DefaultPreference
	}
	var failures []string
	for _, backend := range preference {
		if err := attach(backend); err != nil {
			log.Printf("⚠️ Execution provider %s unavailable: %v", backend, err)
			failures = append(failures, fmt.Sprintf("%s: %v", backend, err))
			continue
		}
		log.Printf("🚀 Using execution provider %s", backend)
		return backend, nil
	}
	return "", errors.Wrapf(ErrNoProvider, "tried %s", strings.Join(failures, "; "))
}

// Options carries the per-backend settings.
type Options struct {
	// CUDA configures the CUDA backend.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`
	// CoreMLFlags are passed to the CoreML backend.
	CoreMLFlags uint32 `json:"coreml_flags" yaml:"coreml_flags"`
}

// attachBackend appends one execution provider to the session options. The CPU
// provider is built into ONNX Runtime and needs no registration.
func attachBackend(options *ort.SessionOptions, backend ProviderBackend, opts Options) error {
	switch backend {
	case CPUProviderBackend:
		return nil
	case CUDAProviderBackend:
		cuda, err := opts.CUDA.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
		return nil
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(opts.CoreMLFlags); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
		return nil
	default:
		return fmt.Errorf("unsupported execution provider %q", backend)
	}
}
