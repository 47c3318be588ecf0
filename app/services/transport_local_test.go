package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	name     string
	args     []string
	fileData []byte
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	// The spool file is removed after Attempt returns, grab it now
	if len(args) > 0 {
		if data, err := os.ReadFile(args[len(args)-1]); err == nil {
			f.fileData = data
		}
	}
	if f.err != nil {
		return []byte("spool error output"), f.err
	}
	return nil, nil
}

func TestNativeBridgeSpoolsPayload(t *testing.T) {
	runner := &fakeRunner{}
	s := NewNativeBridgeStrategy(runner, "EPSON-TM20", nil)
	require.True(t, s.Available())

	payload := &Payload{OrderID: 42, Data: []byte{ESC, '@', 'o', 'i'}, PlainText: false}
	result, err := s.Attempt(context.Background(), payload)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "native-bridge", result.Method)
	assert.Equal(t, payload.Data, runner.fileData)
	assert.Contains(t, strings.Join(runner.args, " "), "EPSON-TM20")
}

func TestNativeBridgeReportsSpoolFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	s := NewNativeBridgeStrategy(runner, "EPSON-TM20", nil)

	_, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom"), PlainText: true})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "native-bridge", transportErr.Transport)
	assert.Contains(t, err.Error(), "spool error output")
}

func TestNativeBridgeUnavailableWithoutPrinter(t *testing.T) {
	assert.False(t, NewNativeBridgeStrategy(&fakeRunner{}, "", nil).Available())
	assert.False(t, NewNativeBridgeStrategy(nil, "EPSON", nil).Available())
}

func TestFileDownloadWritesReceipt(t *testing.T) {
	dir := t.TempDir()
	s := NewFileDownloadStrategy(dir, nil)
	at := time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	result, err := s.Attempt(context.Background(), &Payload{OrderID: 42, Data: []byte("TOTAL: R$ 5,00"), PlainText: true})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "file-download", result.Method)
	assert.Equal(t, "cupom_42_2025-03-14T15-30-00.txt", result.Filename)

	data, err := os.ReadFile(filepath.Join(dir, result.Filename))
	require.NoError(t, err)
	assert.Equal(t, "TOTAL: R$ 5,00", string(data))
}

func TestFileDownloadRawExtension(t *testing.T) {
	dir := t.TempDir()
	s := NewFileDownloadStrategy(dir, nil)

	result, err := s.Attempt(context.Background(), &Payload{OrderID: 1, Data: []byte{ESC, '@'}, PlainText: false})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.Filename, ".prn"))
}

type fakeOpener struct {
	opened   []string
	contents []string
	err      error
}

func (f *fakeOpener) Open(path string) error {
	f.opened = append(f.opened, path)
	if data, err := os.ReadFile(path); err == nil {
		f.contents = append(f.contents, string(data))
	}
	return f.err
}

func TestAutoThermalOpensPrintSurface(t *testing.T) {
	opener := &fakeOpener{}
	s := NewAutoThermalStrategy(opener, true, nil)
	s.cleanupDelay = 10 * time.Millisecond

	result, err := s.Attempt(context.Background(), &Payload{Data: []byte("TOTAL: R$ 5,00"), PlainText: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "auto-thermal", result.Method)

	require.Len(t, opener.opened, 1)
	assert.Contains(t, opener.contents[0], "window.print()")
	assert.Contains(t, opener.contents[0], "Baixar TXT")
	assert.Contains(t, opener.contents[0], "TOTAL: R$ 5,00")

	// The surface file is removed after the grace delay
	assert.Eventually(t, func() bool {
		_, err := os.Stat(opener.opened[0])
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}

func TestAutoThermalRendersTextForRawPayload(t *testing.T) {
	opener := &fakeOpener{}
	s := NewAutoThermalStrategy(opener, true, nil)
	s.cleanupDelay = 10 * time.Millisecond

	p := &Payload{Data: []byte{ESC, '@'}, Text: "TOTAL: R$ 5,00", PlainText: false}
	result, err := s.Attempt(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, opener.contents, 1)
	assert.Contains(t, opener.contents[0], "TOTAL: R$ 5,00")
	assert.NotContains(t, opener.contents[0], string([]byte{ESC, '@'}))
}

func TestAutoThermalRejectsPayloadWithoutText(t *testing.T) {
	s := NewAutoThermalStrategy(&fakeOpener{}, true, nil)
	_, err := s.Attempt(context.Background(), &Payload{Data: []byte{ESC, '@'}, PlainText: false})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestAutoThermalAvailability(t *testing.T) {
	assert.True(t, NewAutoThermalStrategy(&fakeOpener{}, true, nil).Available())
	assert.False(t, NewAutoThermalStrategy(&fakeOpener{}, false, nil).Available())
	assert.False(t, NewAutoThermalStrategy(nil, true, nil).Available())
}

func TestBrowserDialogOpensReceipt(t *testing.T) {
	opener := &fakeOpener{}
	s := NewBrowserDialogStrategy(opener, true, nil)

	result, err := s.Attempt(context.Background(), &Payload{Data: []byte("cupom"), PlainText: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "browser-dialog", result.Method)
	require.Len(t, opener.opened, 1)
	assert.Contains(t, opener.contents[0], "cupom")
}

func TestBrowserDialogNeedsInteractiveSession(t *testing.T) {
	s := NewBrowserDialogStrategy(&fakeOpener{}, false, nil)
	assert.False(t, s.Available())
	assert.False(t, s.Replayable())
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	attempts, err := retryWithBackoff(context.Background(), 3, time.Millisecond, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("ainda nao")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)

	attempts, err = retryWithBackoff(context.Background(), 2, time.Millisecond, func(int) error {
		return errors.New("sempre falha")
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}
