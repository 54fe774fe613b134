// Package configflow validates vendor credentials and turns them into config entries.
package configflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/internal/entries"
	"github.com/benmeehan/invoxia-agent/pkg/gpstracker"
)

var (
	// ErrInvalidAuth means the API rejected the credentials.
	ErrInvalidAuth = errors.New(constants.ErrorInvalidAuth)
	// ErrCannotConnect means the API could not be reached or answered with an error.
	ErrCannotConnect = errors.New(constants.ErrorCannotConnect)
)

// ClientFactory builds a vendor client for candidate credentials.
type ClientFactory func(cfg gpstracker.Config) gpstracker.ClientInterface

// EntryStore is where created entries end up.
type EntryStore interface {
	FindByUniqueID(uniqueID string) (entries.ConfigEntry, bool)
	Add(entry entries.ConfigEntry) (entries.ConfigEntry, error)
}

// Result is the outcome of a flow step.
type Result struct {
	Type     string               `json:"type"`
	StepID   string               `json:"step_id,omitempty"`
	Errors   map[string]string    `json:"errors,omitempty"`
	Defaults entries.Data         `json:"defaults,omitempty"`
	Title    string               `json:"title,omitempty"`
	Reason   string               `json:"reason,omitempty"`
	Entry    *entries.ConfigEntry `json:"entry,omitempty"`
}

// ValidateInput makes one authenticated call with the candidate credentials.
// Failures are reported as ErrInvalidAuth, ErrCannotConnect or the raw error.
func ValidateInput(ctx context.Context, data entries.Data, newClient ClientFactory) error {
	client := newClient(gpstracker.Config{
		APIURL:   data.URL,
		Username: data.Username,
		Password: data.Password,
	})
	defer client.Close()

	if _, err := client.GetDevices(ctx); err != nil {
		var (
			unauthorized *gpstracker.UnauthorizedQueryError
			httpErr      *gpstracker.HTTPError
			connErr      *gpstracker.ConnectionError
		)
		switch {
		case errors.As(err, &unauthorized):
			return fmt.Errorf("%w: %v", ErrInvalidAuth, err)
		case errors.As(err, &httpErr), errors.As(err, &connErr):
			return fmt.Errorf("%w: %v", ErrCannotConnect, err)
		default:
			return err
		}
	}
	return nil
}

// UniqueID is the key that prevents configuring the same account twice.
func UniqueID(data entries.Data) string {
	return data.Username + "@" + data.URL
}

// Flow is the single-step setup wizard for a vendor account.
type Flow struct {
	store     EntryStore
	newClient ClientFactory
	logger    zerolog.Logger
}

// NewFlow creates a Flow.
func NewFlow(store EntryStore, newClient ClientFactory, logger zerolog.Logger) *Flow {
	return &Flow{
		store:     store,
		newClient: newClient,
		logger:    logger,
	}
}

// StepUser handles the credentials form. A nil input asks for the form.
func (f *Flow) StepUser(ctx context.Context, input *entries.Data) Result {
	if input == nil {
		return f.showForm(nil)
	}

	errs := map[string]string{}
	if err := ValidateInput(ctx, *input, f.newClient); err != nil {
		switch {
		case errors.Is(err, ErrInvalidAuth):
			errs["base"] = constants.ErrorInvalidAuth
		case errors.Is(err, ErrCannotConnect):
			errs["base"] = constants.ErrorCannotConnect
		default:
			f.logger.Error().Err(err).Msg("Unexpected exception")
			errs["base"] = constants.ErrorUnknown
		}
		f.logger.Debug().Str("error", errs["base"]).Err(err).Msg("Credential validation failed")
		return f.showForm(errs)
	}

	uniqueID := UniqueID(*input)
	if _, exists := f.store.FindByUniqueID(uniqueID); exists {
		return abort(constants.AbortAlreadyConfigured)
	}

	entry, err := f.store.Add(entries.ConfigEntry{
		Domain:   constants.Domain,
		Title:    input.Username,
		UniqueID: uniqueID,
		Data:     *input,
	})
	if errors.Is(err, entries.ErrAlreadyConfigured) {
		return abort(constants.AbortAlreadyConfigured)
	}
	if err != nil {
		f.logger.Error().Err(err).Msg("Failed to store config entry")
		errs["base"] = constants.ErrorUnknown
		return f.showForm(errs)
	}

	f.logger.Info().Str("entry_id", entry.EntryID).Str("unique_id", uniqueID).Msg("Config entry created")
	return Result{
		Type:  constants.ResultTypeCreateEntry,
		Title: entry.Title,
		Entry: &entry,
	}
}

func (f *Flow) showForm(errs map[string]string) Result {
	return Result{
		Type:     constants.ResultTypeForm,
		StepID:   constants.StepUser,
		Errors:   errs,
		Defaults: entries.Data{URL: gpstracker.DefaultAPIURL},
	}
}

func abort(reason string) Result {
	return Result{Type: constants.ResultTypeAbort, Reason: reason}
}
