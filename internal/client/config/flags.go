package config

import (
	"flag"
	"os"

	"github.com/reelproof/reelproof/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend server (default from Config)
//	-n int      maximum number of concurrent uploads
//	-d string   path to the resume-state sqlite database
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-n", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointURL, "a", cfg.ServerEndpointURL, "base URL of the backend server")
	fs.IntVar(&cfg.MaxConcurrent, "n", cfg.MaxConcurrent, "maximum number of concurrent uploads")
	fs.StringVar(&cfg.ResumeDBPath, "d", cfg.ResumeDBPath, "path to the resume-state database")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
