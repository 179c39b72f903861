package phases

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/opsfleet/workspace-worker/internal/logging"
)

func zerologFromComponent(workspace string) zerolog.Logger {
	return logging.WithWorkspace(workspace)
}

func logFromComponent(component string) zerolog.Logger {
	return logging.WithComponent(component)
}

func openFileSink(dir, workspace string) (*os.File, error) {
	return logging.FileSink(dir, workspace)
}
