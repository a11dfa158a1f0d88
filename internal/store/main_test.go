package store

import (
	"os"
	"testing"

	"github.com/emrgen/docgen/internal/tester"
)

func TestMain(m *testing.M) {
	tester.Setup()
	os.Exit(m.Run())
}
