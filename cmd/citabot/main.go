package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/citabot/internal/availability"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/config"
	"github.com/christopherklint97/citabot/internal/gcal"
	"github.com/christopherklint97/citabot/internal/msgraph"
	"github.com/christopherklint97/citabot/internal/nlparse"
	"github.com/christopherklint97/citabot/internal/store"
	"github.com/christopherklint97/citabot/internal/tui"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "citabot",
	Short: "Spanish scheduling assistant for appointment bookings",
	Long:  "citabot talks with customers in Spanish, finds free slots in your calendar, and books appointments on Google Calendar, Outlook, or an ICS file.",
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	RunE:  runChat,
}

var slotsCmd = &cobra.Command{
	Use:   "slots [fecha]",
	Short: "Show free appointment slots",
	Long:  "Show the next free slots, or the free slots on a date written in Spanish (\"mañana\", \"15 de mayo\", \"el viernes\").",
	RunE:  runSlots,
}

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "List booking attempts",
	RunE:  runBookings,
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry bookings whose calendar event could not be created",
	RunE:  runRetry,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Calendar account commands",
}

var calendarAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to the configured calendar",
	RunE:  runCalendarAuth,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.config/citabot/config.toml)")

	chatCmd.Flags().String("user", "console", "user id for the conversation")
	bookingsCmd.Flags().Bool("failed", false, "only bookings whose calendar event was not created")
	bookingsCmd.Flags().Int("days", 30, "how many days back to list")
	retryCmd.Flags().Duration("interval", 0, "keep retrying on this interval (default: retry once)")

	calendarCmd.AddCommand(calendarAuthCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(bookingsCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading config (run 'citabot config' to edit it)")
	}
	return cfg, nil
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newRuntime(ctx, cfg)
}

func runChat(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	assistant, err := rt.assistant()
	if err != nil {
		return err
	}
	if !rt.gateway.Configured() {
		fmt.Println("Warning: calendar not configured, run 'citabot calendar auth' first.")
	}
	return tui.Run(assistant, user, rt.cfg.Business.Name)
}

func runSlots(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	assistant, err := rt.assistant()
	if err != nil {
		return err
	}
	settings := assistant.Settings()
	loc, err := caltime.ResolveZone(settings.TimeZone)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	engine := assistant.Engine()

	var slots []availability.Slot
	if len(args) > 0 {
		text := strings.Join(args, " ")
		date, ok := nlparse.ParseDate(text, now)
		if !ok {
			return errors.Errorf("could not read a date from %q", text)
		}
		slots, err = engine.SlotsOnDate(ctx, date, loc, settings.MaxSlots*4)
	} else {
		slots, err = engine.FindSlots(ctx, availability.Query{Start: now, Location: loc})
	}
	if err != nil {
		return errors.Wrap(err, "finding free slots")
	}

	if len(slots) == 0 {
		fmt.Println("No free slots found.")
		return nil
	}
	fmt.Printf("Free slots (%s):\n\n", settings.TimeZone)
	for _, s := range slots {
		fmt.Printf("  %-32s  %s–%s\n", caltime.FormatLongDate(s.Date), s.StartTime, s.EndTime)
	}
	return nil
}

func runBookings(cmd *cobra.Command, args []string) error {
	failed, _ := cmd.Flags().GetBool("failed")
	days, _ := cmd.Flags().GetInt("days")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer db.Close()

	ctx := cmd.Context()
	var bookings []store.Booking
	if failed {
		bookings, err = db.FailedBookings(ctx)
	} else {
		now := time.Now()
		bookings, err = db.BookingsBetween(ctx, now.AddDate(0, 0, -days), now.AddDate(1, 0, 0))
	}
	if err != nil {
		return errors.Wrap(err, "fetching bookings")
	}

	if len(bookings) == 0 {
		fmt.Println("No bookings found.")
		return nil
	}
	for _, b := range bookings {
		loc, err := caltime.ResolveZone(b.TimeZone)
		if err != nil {
			loc = time.Local
		}
		start := b.StartTime.In(loc)
		fmt.Printf("  #%-4d %s %s  %-20s  %-28s  [%s]",
			b.ID,
			start.Format("2006-01-02 15:04"),
			b.TimeZone,
			b.Name,
			b.Email,
			b.Status,
		)
		if b.Error != "" {
			fmt.Printf("  %s", b.Error)
		}
		fmt.Println()
	}
	fmt.Printf("\n%d bookings\n", len(bookings))
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	retrier := rt.retrier()
	if interval > 0 {
		return retrier.Run(ctx, interval)
	}

	res, err := retrier.RetryFailed(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Booked %d, skipped %d, still failing %d\n", res.Booked, res.Skipped, res.Failed)
	return nil
}

func runCalendarAuth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	switch providerName(cfg) {
	case "ics":
		fmt.Printf("The ICS calendar at %s needs no authorization.\n", cfg.Calendar.Source)
		return nil
	case "graph":
		tokens, err := msgraph.DefaultTokenStore()
		if err != nil {
			return err
		}
		auth := msgraph.NewAuth(cfg.Calendar.Graph.ClientID, cfg.Calendar.Graph.TenantID, tokens, nil)
		dc, err := auth.StartDeviceCodeFlow(ctx)
		if err != nil {
			return err
		}
		fmt.Println(dc.Message)
		if _, err := auth.PollForToken(ctx, dc.DeviceCode, dc.Interval); err != nil {
			return err
		}
		fmt.Println("Microsoft Graph authorized.")
		return nil
	default:
		if err := config.EnsureConfigDir(); err != nil {
			return errors.Wrap(err, "creating config directory")
		}
		return gcal.Authorize(ctx, googleOptions(cfg), os.Stdin, os.Stdout)
	}
}

func runConfig(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	if err := config.WriteDefault(configPath); err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		// If editor fails, just print the path
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}
