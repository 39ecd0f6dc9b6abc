// Package sysinfo inspects the host for hardware that changes how the voice
// and speech models should be launched.
package sysinfo

import (
	"strings"
	"sync"

	"github.com/jaypipes/ghw"
	"github.com/jaypipes/ghw/pkg/gpu"
)

const vendorNVIDIA = "nvidia"

// CardLister enumerates graphics cards.
type CardLister func() ([]*gpu.GraphicsCard, error)

var (
	gpuCache     []*gpu.GraphicsCard
	gpuCacheErr  error
	gpuCacheOnce sync.Once
)

// GPUs returns the graphics cards ghw can see, cached for the process.
func GPUs() ([]*gpu.GraphicsCard, error) {
	gpuCacheOnce.Do(func() {
		info, err := ghw.GPU()
		if err != nil {
			gpuCacheErr = err
			return
		}
		gpuCache = info.GraphicsCards
	})
	return gpuCache, gpuCacheErr
}

// DeviceResolver maps the "auto" device hint to a concrete torch device.
type DeviceResolver struct {
	list CardLister
}

// NewDeviceResolver returns a resolver backed by ghw.
func NewDeviceResolver() *DeviceResolver {
	return &DeviceResolver{list: GPUs}
}

// NewDeviceResolverWithLister returns a resolver using a custom card source.
func NewDeviceResolverWithLister(list CardLister) *DeviceResolver {
	return &DeviceResolver{list: list}
}

// HasNVIDIA reports whether a CUDA-capable card is present.
func (r *DeviceResolver) HasNVIDIA() bool {
	if r == nil || r.list == nil {
		return false
	}
	cards, err := r.list()
	if err != nil {
		return false
	}
	for _, card := range cards {
		if isNVIDIA(card) {
			return true
		}
	}
	return false
}

// Resolve returns requested unchanged unless it is "auto" or empty, in which
// case it picks cuda when an NVIDIA card is present and cpu otherwise.
func (r *DeviceResolver) Resolve(requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested != "" && requested != "auto" {
		return requested
	}
	if r.HasNVIDIA() {
		return "cuda"
	}
	return "cpu"
}

func isNVIDIA(card *gpu.GraphicsCard) bool {
	if card == nil {
		return false
	}
	if info := card.DeviceInfo; info != nil {
		if strings.Contains(strings.ToLower(info.Driver), vendorNVIDIA) {
			return true
		}
		if info.Vendor != nil && strings.Contains(strings.ToLower(info.Vendor.Name), vendorNVIDIA) {
			return true
		}
	}
	return false
}
