package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "cyberguard",
		Usage: "command line access to the CyberGuard security platform",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override CYBERGUARD_LOG_LEVEL (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			registerCommand(),
			resetPasswordCommand(),
			logoutCommand(),
			whoamiCommand(),
			refreshCommand(),
			verifyEmailCommand(),
			twoFactorCommand(),
			oauthCommand(),
			threatsCommand(),
			reportsCommand(),
			notificationsCommand(),
			incidentsCommand(),
			devicesCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
