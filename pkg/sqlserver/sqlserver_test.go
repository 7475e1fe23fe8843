package sqlserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/fleetcast/pkg/config"
)

func TestOpen_NotConfigured(t *testing.T) {
	_, err := Open(context.Background(), config.SourceDBConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
