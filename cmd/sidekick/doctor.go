package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/mark3labs/sidekick/internal/auth"
	"github.com/mark3labs/sidekick/internal/config"
	"github.com/mark3labs/sidekick/internal/git"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment",
	Long: `Check that sidekick's dependencies are available: the agent binary,
configuration, git, and stored credentials.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	failures := 0
	check := func(ok bool, label, detail string) {
		mark := titleStyle.Render("ok")
		if !ok {
			mark = errStyle.Render("missing")
			failures++
		}
		fmt.Printf("%-10s %s", mark, label)
		if detail != "" {
			fmt.Printf(" %s", dimStyle.Render("("+detail+")"))
		}
		fmt.Println()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Agent binary
	path, err := exec.LookPath(cfg.AgentBin)
	check(err == nil, "agent binary: "+cfg.AgentBin, path)

	// Configuration file
	if config.Exists() {
		check(true, "config file", "")
	} else {
		fmt.Printf("%-10s config file %s\n", dimStyle.Render("none"),
			dimStyle.Render("(defaults in effect, run 'sidekick setup')"))
	}

	// Git repository
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	info, err := git.GetInfo(wd)
	switch {
	case err != nil:
		check(false, "git repository", err.Error())
	case info == nil:
		fmt.Printf("%-10s git repository %s\n", dimStyle.Render("none"),
			dimStyle.Render("(not inside a work tree)"))
	default:
		detail := info.Branch + "@" + info.Hash
		if info.Dirty {
			detail += ", dirty"
		}
		check(true, "git repository", detail)
	}

	// Credentials
	creds, err := auth.LoadCredentials()
	switch {
	case err != nil:
		check(false, "credentials", err.Error())
	case creds == nil:
		fmt.Printf("%-10s credentials %s\n", dimStyle.Render("none"),
			dimStyle.Render("(run 'sidekick auth login')"))
	case creds.Expired():
		check(false, "credentials", "expired")
	default:
		check(true, "credentials", auth.CredentialsPath())
	}

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	fmt.Println("\nAll checks passed.")
	return nil
}
