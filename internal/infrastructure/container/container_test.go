package container

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModuleGraphIsComplete(t *testing.T) {
	err := fx.ValidateApp(
		fx.NopLogger,
		Module(""),
	)
	require.NoError(t, err)
}
