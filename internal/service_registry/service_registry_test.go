package service_registry

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name     string
	log      *[]string
	startErr error
	stopErr  error
}

func (s *recordingService) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start:"+s.name)
	return nil
}

func (s *recordingService) Stop() error {
	*s.log = append(*s.log, "stop:"+s.name)
	return s.stopErr
}

func TestServiceRegistry_StartStopOrder(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log})
	sr.RegisterService("b", &recordingService{name: "b", log: &log})
	sr.RegisterService("a", &recordingService{name: "dup", log: &log})
	assert.Equal(t, 2, sr.Len())

	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, log)

	// Nothing is running any more.
	require.NoError(t, sr.StopServices())
	assert.Len(t, log, 4)
}

func TestServiceRegistry_RollsBackOnStartFailure(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log})
	sr.RegisterService("b", &recordingService{name: "b", log: &log, startErr: errors.New("boom")})
	sr.RegisterService("c", &recordingService{name: "c", log: &log})

	err := sr.StartServices()
	assert.ErrorContains(t, err, "failed to start b: boom")
	assert.Equal(t, []string{"start:a", "stop:a"}, log)

	require.NoError(t, sr.StopServices())
	assert.Len(t, log, 2)
}

func TestServiceRegistry_JoinsStopErrors(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log, stopErr: errors.New("stuck")})
	sr.RegisterService("b", &recordingService{name: "b", log: &log, stopErr: errors.New("wedged")})

	require.NoError(t, sr.StartServices())
	err := sr.StopServices()
	assert.ErrorContains(t, err, "failed to stop b: wedged")
	assert.ErrorContains(t, err, "failed to stop a: stuck")
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, log)
}
