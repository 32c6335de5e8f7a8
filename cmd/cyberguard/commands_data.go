package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jrsteele09/cyberguard-client/devices"
	"github.com/jrsteele09/cyberguard-client/incidents"
	"github.com/jrsteele09/cyberguard-client/notifications"
	"github.com/jrsteele09/cyberguard-client/reports"
	"github.com/jrsteele09/cyberguard-client/threats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

// jsonAction runs fetch against the authenticated API client and prints the result.
func jsonAction[S any](newService func(a *app) (S, error), fetch func(ctx context.Context, cmd *cli.Command, svc S) (any, error)) cli.ActionFunc {
	return withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
		svc, err := newService(a)
		if err != nil {
			return err
		}
		res, err := fetch(ctx, cmd, svc)
		if err != nil {
			return err
		}
		return printJSON(a.out, res)
	})
}

func idArg(cmd *cli.Command) (int64, error) {
	id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil {
		return 0, errors.Errorf("numeric id required, got %q", cmd.Args().First())
	}
	return id, nil
}

func threatService(a *app) (*threats.Service, error) {
	return threats.NewService(a.wiring.Clients.API)
}

func threatsCommand() *cli.Command {
	list := func(name, usage string, fn func(ctx context.Context, cmd *cli.Command, svc *threats.Service) (any, error)) *cli.Command {
		return &cli.Command{Name: name, Usage: usage, Action: jsonAction(threatService, fn)}
	}
	return &cli.Command{
		Name:  "threats",
		Usage: "query the threat detection service",
		Commands: []*cli.Command{
			list("current", "threats currently active", func(ctx context.Context, _ *cli.Command, svc *threats.Service) (any, error) {
				return svc.Current(ctx)
			}),
			list("data", "raw threat data", func(ctx context.Context, _ *cli.Command, svc *threats.Service) (any, error) {
				return svc.Data(ctx)
			}),
			list("features", "feature distribution", func(ctx context.Context, _ *cli.Command, svc *threats.Service) (any, error) {
				return svc.FeatureDistribution(ctx)
			}),
			list("types", "threat types over time", func(ctx context.Context, _ *cli.Command, svc *threats.Service) (any, error) {
				return svc.TypesOverTime(ctx)
			}),
			list("user", "threats for a user id", func(ctx context.Context, cmd *cli.Command, svc *threats.Service) (any, error) {
				id, err := idArg(cmd)
				if err != nil {
					return nil, err
				}
				return svc.ByUser(ctx, id)
			}),
			list("device", "threats for a device id", func(ctx context.Context, cmd *cli.Command, svc *threats.Service) (any, error) {
				id, err := idArg(cmd)
				if err != nil {
					return nil, err
				}
				return svc.ByDevice(ctx, id)
			}),
			list("ip", "threats for an IP address", func(ctx context.Context, cmd *cli.Command, svc *threats.Service) (any, error) {
				return svc.ByIP(ctx, cmd.Args().First())
			}),
			list("severity", "threats of a severity (LOW, MEDIUM, HIGH, CRITICAL)", func(ctx context.Context, cmd *cli.Command, svc *threats.Service) (any, error) {
				return svc.BySeverity(ctx, threats.Severity(cmd.Args().First()))
			}),
			{
				Name:  "range",
				Usage: "threats detected in a time window",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "since", Value: 24 * time.Hour},
				},
				Action: jsonAction(threatService, func(ctx context.Context, cmd *cli.Command, svc *threats.Service) (any, error) {
					end := time.Now()
					return svc.ByTimeRange(ctx, end.Add(-cmd.Duration("since")), end)
				}),
			},
			{
				Name:  "analyze",
				Usage: "submit a traffic sample for manual detection",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Required: true},
					&cli.StringFlag{Name: "destination", Required: true},
					&cli.StringFlag{Name: "protocol", Value: "TCP"},
					&cli.IntFlag{Name: "size", Value: 512},
				},
				Action: jsonAction(threatService, func(ctx context.Context, cmd *cli.Command, svc *threats.Service) (any, error) {
					return svc.AnalyzeTraffic(ctx, threats.Traffic{
						SourceIP:      cmd.String("source"),
						DestinationIP: cmd.String("destination"),
						Protocol:      cmd.String("protocol"),
						PacketSize:    int(cmd.Int("size")),
					})
				}),
			},
		},
	}
}

func reportService(a *app) (*reports.Service, error) {
	return reports.NewService(a.wiring.Clients.API)
}

func reportsCommand() *cli.Command {
	export := func(format string) *cli.Command {
		return &cli.Command{
			Name:      format,
			Usage:     "download a threat report as " + format,
			ArgsUsage: "<threat id>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "file to write, defaults to the report name"},
			},
			Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
				id, err := idArg(cmd)
				if err != nil {
					return err
				}
				svc, err := reportService(a)
				if err != nil {
					return err
				}
				var exp *reports.Export
				if format == "pdf" {
					exp, err = svc.ExportPDF(ctx, id)
				} else {
					exp, err = svc.ExportCSV(ctx, id)
				}
				if err != nil {
					return err
				}
				path := cmd.String("output")
				if path == "" {
					path = exp.Filename
				}
				if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
					return errors.Wrap(err, "write report")
				}
				fmt.Fprintf(a.out, "Wrote %s (%d bytes)\n", path, len(exp.Data))
				return nil
			}),
		}
	}

	return &cli.Command{
		Name:  "reports",
		Usage: "threat reports",
		Commands: []*cli.Command{
			{
				Name:  "summary",
				Usage: "summary over a date range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "start", Usage: "yyyy-mm-dd", Value: time.Now().AddDate(0, 0, -30).Format(time.DateOnly)},
					&cli.StringFlag{Name: "end", Usage: "yyyy-mm-dd", Value: time.Now().Format(time.DateOnly)},
				},
				Action: jsonAction(reportService, func(ctx context.Context, cmd *cli.Command, svc *reports.Service) (any, error) {
					return svc.Summary(ctx, cmd.String("start"), cmd.String("end"))
				}),
			},
			{
				Name:      "detailed",
				ArgsUsage: "<threat id>",
				Action: jsonAction(reportService, func(ctx context.Context, cmd *cli.Command, svc *reports.Service) (any, error) {
					id, err := idArg(cmd)
					if err != nil {
						return nil, err
					}
					return svc.Detailed(ctx, id)
				}),
			},
			{
				Name:     "export",
				Usage:    "download a report file",
				Commands: []*cli.Command{export("pdf"), export("csv")},
			},
		},
	}
}

func notificationService(a *app) (*notifications.Service, error) {
	return notifications.NewService(a.wiring.Clients.API)
}

func notificationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "notifications",
		Usage: "list or watch notifications",
		Commands: []*cli.Command{
			{
				Name: "list",
				Action: jsonAction(notificationService, func(ctx context.Context, _ *cli.Command, svc *notifications.Service) (any, error) {
					return svc.List(ctx)
				}),
			},
			{
				Name:      "read",
				Usage:     "mark a notification as read",
				ArgsUsage: "<notification id>",
				Action: jsonAction(notificationService, func(ctx context.Context, cmd *cli.Command, svc *notifications.Service) (any, error) {
					id, err := idArg(cmd)
					if err != nil {
						return nil, err
					}
					return svc.MarkRead(ctx, id)
				}),
			},
			{
				Name:  "preferences",
				Usage: "choose delivery channels",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "push"},
					&cli.BoolFlag{Name: "email"},
					&cli.BoolFlag{Name: "sms"},
				},
				Action: jsonAction(notificationService, func(ctx context.Context, cmd *cli.Command, svc *notifications.Service) (any, error) {
					return svc.UpdatePreferences(ctx, notifications.Preferences{
						Push:  cmd.Bool("push"),
						Email: cmd.Bool("email"),
						SMS:   cmd.Bool("sms"),
					})
				}),
			},
			{
				Name:  "watch",
				Usage: "stream notifications until interrupted",
				Action: withApp(func(ctx context.Context, _ *cli.Command, a *app) error {
					if !a.cfg.GetWebsocketEnabled() {
						return errors.New("the notification stream is disabled (CYBERGUARD_ENABLE_WEBSOCKET=false)")
					}
					stream, err := notifications.NewStream(a.cfg.GetAPIBaseURL(), a.session,
						func(n notifications.Notification) {
							fmt.Fprintf(a.out, "[%s] %s\n", n.CreatedAt, n.Message)
						},
						notifications.WithHost(a.cfg.GetWebsocketHost()),
						notifications.WithMaxAttempts(a.cfg.GetWebsocketMaxAttempts()),
						notifications.WithRetryDelay(a.cfg.GetWebsocketRetryDelay()),
					)
					if err != nil {
						return err
					}
					return stream.Run(ctx)
				}),
			},
		},
	}
}

func incidentService(a *app) (*incidents.Service, error) {
	return incidents.NewService(a.wiring.Clients.API)
}

func incidentsCommand() *cli.Command {
	list := func(name string, fn func(*incidents.Service) func(context.Context) ([]incidents.Incident, error)) *cli.Command {
		return &cli.Command{
			Name: name,
			Action: jsonAction(incidentService, func(ctx context.Context, _ *cli.Command, svc *incidents.Service) (any, error) {
				return fn(svc)(ctx)
			}),
		}
	}
	return &cli.Command{
		Name:  "incidents",
		Usage: "incident views",
		Commands: []*cli.Command{
			list("list", func(s *incidents.Service) func(context.Context) ([]incidents.Incident, error) { return s.List }),
			list("recent", func(s *incidents.Service) func(context.Context) ([]incidents.Incident, error) { return s.Recent }),
			list("logs", func(s *incidents.Service) func(context.Context) ([]incidents.Incident, error) { return s.Logs }),
			{
				Name: "metrics",
				Action: jsonAction(incidentService, func(ctx context.Context, _ *cli.Command, svc *incidents.Service) (any, error) {
					return svc.Metrics(ctx)
				}),
			},
			{
				Name: "severity",
				Action: jsonAction(incidentService, func(ctx context.Context, _ *cli.Command, svc *incidents.Service) (any, error) {
					return svc.SeverityDistribution(ctx)
				}),
			},
			{
				Name: "types",
				Action: jsonAction(incidentService, func(ctx context.Context, _ *cli.Command, svc *incidents.Service) (any, error) {
					return svc.TypeDistribution(ctx)
				}),
			},
			{
				Name: "response-times",
				Action: jsonAction(incidentService, func(ctx context.Context, _ *cli.Command, svc *incidents.Service) (any, error) {
					return svc.ResponseTimes(ctx)
				}),
			},
			{
				Name:  "create",
				Usage: "file an incident",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "case-id"},
					&cli.StringFlag{Name: "type", Required: true},
					&cli.StringFlag{Name: "severity", Required: true},
					&cli.StringFlag{Name: "description"},
				},
				Action: jsonAction(incidentService, func(ctx context.Context, cmd *cli.Command, svc *incidents.Service) (any, error) {
					return svc.Create(ctx, incidents.Incident{
						CaseID:      cmd.String("case-id"),
						Type:        cmd.String("type"),
						Severity:    cmd.String("severity"),
						Description: cmd.String("description"),
					})
				}),
			},
		},
	}
}

func deviceService(a *app) (*devices.Service, error) {
	return devices.NewService(a.wiring.Clients.API)
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "device management",
		Commands: []*cli.Command{
			{
				Name: "list",
				Action: jsonAction(deviceService, func(ctx context.Context, _ *cli.Command, svc *devices.Service) (any, error) {
					return svc.List(ctx)
				}),
			},
			{
				Name: "register",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "type", Value: "WORKSTATION"},
					&cli.StringFlag{Name: "user-id", Required: true},
				},
				Action: jsonAction(deviceService, func(ctx context.Context, cmd *cli.Command, svc *devices.Service) (any, error) {
					userID, err := strconv.ParseInt(cmd.String("user-id"), 10, 64)
					if err != nil {
						return nil, errors.Wrap(err, "user-id")
					}
					return svc.Register(ctx, devices.Registration{
						UserID:     userID,
						DeviceName: cmd.String("name"),
						DeviceType: cmd.String("type"),
					})
				}),
			},
			{
				Name:      "status",
				ArgsUsage: "<device id> <ACTIVE|INACTIVE|QUARANTINED>",
				Action: jsonAction(deviceService, func(ctx context.Context, cmd *cli.Command, svc *devices.Service) (any, error) {
					id, err := idArg(cmd)
					if err != nil {
						return nil, err
					}
					return svc.UpdateStatus(ctx, id, devices.Status(cmd.Args().Get(1)))
				}),
			},
		},
	}
}
