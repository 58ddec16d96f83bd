// Package providers - CUDA execution provider options.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID" yaml:"deviceID"`
}

// settings renders the options in the key/value form ONNX Runtime expects.
func (o CUDAOptions) settings() map[string]string {
	return map[string]string{
		"device_id": fmt.Sprintf("%d", o.DeviceID),
	}
}

// ToNativeProviderOptions converts the CUDA options to native provider options.
// The caller must Destroy the result.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	if o.DeviceID < 0 {
		return nil, fmt.Errorf("invalid CUDA device ID %d", o.DeviceID)
	}
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}
	if err := opts.Update(o.settings()); err != nil {
		opts.Destroy()
		return nil, err
	}
	return opts, nil
}
