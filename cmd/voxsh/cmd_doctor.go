package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"voxsh/cmd/voxsh/ui"
	"voxsh/internal/config"
	"voxsh/internal/speech"
	"voxsh/internal/tactile"
)

// writeConfig asks doctor to create the config file from the effective settings.
var writeConfig bool

// doctorCmd checks the local setup
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, shell, microphone and transcriber",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&writeConfig, "write-config", false, "Write the effective configuration to the config file if it does not exist")
}

// check is one doctor test.
type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	styles := ui.DefaultStyles()
	if writeConfig {
		path, err := writeConfigFile(afero.NewOsFs(), cfg, configFilePath())
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, styles.Success.Render("Wrote")+" "+path)
	}
	failed := runChecks(ctx, os.Stdout, styles, doctorChecks(cfg))
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// writeConfigFile saves c to path unless a file is already there. The API key
// is replaced by the placeholder so keys taken from the environment never
// reach the disk.
func writeConfigFile(fs afero.Fs, c *config.Config, path string) (string, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", fmt.Errorf("check config file: %w", err)
	}
	if exists {
		return "", fmt.Errorf("config file %s already exists", path)
	}
	out := *c
	out.LLM.APIKey = config.PlaceholderAPIKey
	if err := out.Save(fs, path); err != nil {
		return "", err
	}
	return path, nil
}

// doctorChecks lists the checks for c.
func doctorChecks(c *config.Config) []check {
	checks := []check{
		{"configuration", func(ctx context.Context) (string, error) {
			if err := c.Validate(false); err != nil {
				return "", err
			}
			return fmt.Sprintf("model %s, %d attempts per task", c.LLM.Model, c.Resolver.MaxAttempts), nil
		}},
		{"shell", func(ctx context.Context) (string, error) {
			runner := tactile.NewShellRunner(nil)
			res, err := runner.Run(ctx, "echo ok")
			if err != nil {
				return "", err
			}
			if res.Failed() || strings.TrimSpace(res.Stdout) != "ok" {
				return "", fmt.Errorf("unexpected result: exit %d, %q", res.ExitCode, res.Output())
			}
			return runner.Command("echo ok").Binary, nil
		}},
	}

	if audioFile != "" {
		checks = append(checks, check{"audio file", func(ctx context.Context) (string, error) {
			info, err := os.Stat(audioFile)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (%d bytes)", audioFile, info.Size()), nil
		}})
	} else {
		checks = append(checks, check{"capture", func(ctx context.Context) (string, error) {
			return exec.LookPath(c.Speech.CaptureBinary)
		}})
	}

	checks = append(checks, check{"transcriber", func(ctx context.Context) (string, error) {
		if c.Speech.TranscriberURL == "" {
			return "", fmt.Errorf("not configured")
		}
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		t, err := speech.DialVosk(ctx, c.Speech.TranscriberURL, c.Speech.SampleRate)
		if err != nil {
			return "", err
		}
		t.Close()
		return c.Speech.TranscriberURL, nil
	}})
	return checks
}

// runChecks runs every check and prints one line per result. It returns the
// number of failures.
func runChecks(ctx context.Context, out io.Writer, styles ui.Styles, checks []check) int {
	failed := 0
	for _, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s %-14s %s\n", styles.Error.Render("✗"), c.name, err)
			continue
		}
		fmt.Fprintf(out, "%s %-14s %s\n", styles.Success.Render("✓"), c.name, styles.Muted.Render(detail))
	}
	return failed
}
