// Package mocks ships demonstration API namespaces built on the facade.
//
// The payloads are placeholders in the spirit of a previewer: they have the
// right shape for an application to render, not real device data.
package mocks

import (
	"time"

	"github.com/srg/previewsim/internal/invoke"
	"github.com/srg/previewsim/internal/provider"
	"github.com/srg/previewsim/pkg/facade"
)

const (
	// UnknownString is the placeholder for string payload fields
	UnknownString = "[preview] unknown string"

	// CodeNotSupported is the business error code for operations a previewer cannot perform
	CodeNotSupported = 801

	// CodeInvalidParameter is the business error code for malformed parameters
	CodeInvalidParameter = 401
)

// Installer registers one namespace's payloads into cat and its events on f
type Installer func(f *facade.Facade, cat *provider.Catalog, interval time.Duration) *facade.Namespace

// Installers returns every demonstration namespace by name
func Installers() map[string]Installer {
	return map[string]Installer{
		BluetoothNamespace: InstallBluetooth,
		NetworkNamespace:   InstallNetwork,
	}
}

// InstallAll installs every demonstration namespace
func InstallAll(f *facade.Facade, cat *provider.Catalog, interval time.Duration) []*facade.Namespace {
	return []*facade.Namespace{
		InstallBluetooth(f, cat, interval),
		InstallNetwork(f, cat, interval),
	}
}

func notSupported(api string) error {
	return &invoke.BusinessError{Code: CodeNotSupported, Message: api + " is not supported in the previewer"}
}

func invalidParameter(msg string) error {
	return &invoke.BusinessError{Code: CodeInvalidParameter, Message: msg}
}
