package sim

import (
	"os"
	"testing"

	"github.com/printfarm-sim/printfarm-sim/sim/internal/testutil"
)

func TestMain(m *testing.M) {
	os.Exit(testutil.RunQuiet(m))
}
