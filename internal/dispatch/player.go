package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"vigil/internal/logger"
)

// cuePlaceholder in a configured argument is replaced by the cue name.
const cuePlaceholder = "{cue}"

// ExecPlayer invokes an external command to render a cue, e.g.
// command "aplay", args ["/opt/vigil/sounds/{cue}.wav"].
type ExecPlayer struct {
	command string
	args    []string
}

func NewExecPlayer(command string, args []string) *ExecPlayer {
	return &ExecPlayer{command: command, args: args}
}

// Play runs the configured command with the cue substituted in. If no argument
// carries the placeholder, the cue is appended as the final argument.
func (p *ExecPlayer) Play(ctx context.Context, cue string) error {
	argv := make([]string, 0, len(p.args)+1)
	substituted := false
	for _, a := range p.args {
		if strings.Contains(a, cuePlaceholder) {
			a = strings.ReplaceAll(a, cuePlaceholder, cue)
			substituted = true
		}
		argv = append(argv, a)
	}
	if !substituted {
		argv = append(argv, cue)
	}

	cmd := exec.CommandContext(ctx, p.command, argv...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("player command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NoopPlayer logs cues instead of rendering them. Used when audio is disabled.
type NoopPlayer struct{}

func (NoopPlayer) Play(_ context.Context, cue string) error {
	log := logger.WithComponent("player")
	log.Info().Str("cue", cue).Msg("audio disabled, cue dropped")
	return nil
}
