package logger_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/ifmain/pinny/internal/logger"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pinny.log")

	log, err := logger.New(logger.Options{Level: "info", Path: path})
	assert.NilError(t, err)

	log.Info("metadata updated", logger.String("bookmark_id", "b1"))
	log.Debug("hidden at info level")
	log.With(logger.String("component", "worker")).Error("sync failed", logger.Error(errors.New("boom")))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	assert.NilError(t, err)

	out := string(data)
	assert.Assert(t, strings.Contains(out, "metadata updated"))
	assert.Assert(t, strings.Contains(out, `"bookmark_id":"b1"`))
	assert.Assert(t, strings.Contains(out, `"component":"worker"`))
	assert.Assert(t, !strings.Contains(out, "hidden at info level"))
}

func TestNop_DiscardsEverything(t *testing.T) {
	log := logger.Nop()
	log.Info("ignored")
	log.Errorf("ignored %d", 1)
	assert.NilError(t, log.Sync())
}
