package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/myalex/internal/api"
	"github.com/stellarlinkco/myalex/internal/app"
	"github.com/stellarlinkco/myalex/internal/auth"
	"github.com/stellarlinkco/myalex/internal/chat"
	"github.com/stellarlinkco/myalex/internal/config"
	"github.com/stellarlinkco/myalex/internal/feedback"
	"github.com/stellarlinkco/myalex/internal/histcache"
	"github.com/stellarlinkco/myalex/internal/notify"
	"github.com/stellarlinkco/myalex/internal/watch"
)

// probeInterval paces the background connectivity checks in long-running
// commands.
const probeInterval = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "myalex",
	Short: "myalex - Alexandria cultural companion",
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show myalex status",
	RunE:  runStatus,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend",
	RunE:  runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE:  runLogout,
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Historical context for a coordinate (cache-aware)",
	RunE:  runContext,
}

var cachedCmd = &cobra.Command{
	Use:   "cached [query]",
	Short: "Browse or search the offline cache",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCached,
}

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Warm the cache for the major landmarks",
	RunE:  runPreload,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Predicted cultural events",
	RunE:  runEvents,
}

var safetyCmd = &cobra.Command{
	Use:   "safety",
	Short: "Current safety-net report",
	RunE:  runSafety,
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Trending discussion starters",
	RunE:  runTopics,
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Suggested chat rooms for your activity",
	RunE:  runRooms,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the cultural assistant",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Send feedback (queued when offline)",
	RunE:  runFeedback,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join a chat room",
	RunE:  runChat,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background safety and cache schedules",
	RunE:  runWatch,
}

var (
	emailFlag     string
	passwordFlag  string
	nameFlag      string
	profileFlag   string
	latFlag       float64
	lngFlag       float64
	languageFlag  string
	roomFlag      string
	categoryFlag  string
	messageFlag   string
	ratingFlag    int
	offlineFlag   bool
	interestsFlag string
)

func init() {
	loginCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	loginCmd.Flags().StringVar(&passwordFlag, "password", "", "Account password")
	signupCmd.Flags().StringVar(&nameFlag, "name", "", "Display name")
	signupCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	signupCmd.Flags().StringVar(&passwordFlag, "password", "", "Account password")
	signupCmd.Flags().StringVar(&profileFlag, "profile", "Tourist", "Profile: Tourist, Local Resident or Expat")
	contextCmd.Flags().Float64Var(&latFlag, "lat", 0, "Latitude")
	contextCmd.Flags().Float64Var(&lngFlag, "lng", 0, "Longitude")
	contextCmd.Flags().StringVar(&languageFlag, "language", "", "Response language (defaults to settings)")
	contextCmd.Flags().BoolVar(&offlineFlag, "offline", false, "Skip the network and serve from cache")
	_ = contextCmd.MarkFlagRequired("lat")
	_ = contextCmd.MarkFlagRequired("lng")
	roomsCmd.Flags().StringVar(&interestsFlag, "interests", "", "Free-text interests for room matching")
	feedbackCmd.Flags().StringVar(&categoryFlag, "category", "general", "Feedback category")
	feedbackCmd.Flags().StringVar(&messageFlag, "message", "", "Feedback text")
	feedbackCmd.Flags().IntVar(&ratingFlag, "rating", 0, "Optional 1-5 rating")
	_ = feedbackCmd.MarkFlagRequired("message")
	chatCmd.Flags().StringVar(&roomFlag, "room", "alexandria-general", "Room to join")

	rootCmd.AddCommand(onboardCmd, statusCmd, loginCmd, signupCmd, logoutCmd,
		contextCmd, cachedCmd, preloadCmd, eventsCmd, safetyCmd, topicsCmd,
		roomsCmd, askCmd, feedbackCmd, chatCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads config, builds the service graph, runs fn and tears down.
func withApp(fn func(a *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set backend.baseUrl\n", cfgPath)
	fmt.Println("  2. Or set MYALEX_BASE_URL environment variable")
	fmt.Println("  3. Run 'myalex login --email you@example.com --password ...'")
	fmt.Println("  4. Run 'myalex context --lat 31.2089 --lng 29.9097' to test")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if cfg.Backend.BaseURL != "" {
		fmt.Printf("Backend: %s\n", cfg.Backend.BaseURL)
	} else {
		fmt.Println("Backend: not set")
	}
	fmt.Printf("Language: %s\n", cfg.Settings.Language)
	fmt.Printf("Telegram: enabled=%v\n", cfg.Notify.Telegram.Enabled)

	a, err := app.New(cfg)
	if err != nil {
		fmt.Printf("Services: unavailable (%v)\n", err)
		return nil
	}
	defer a.Close()

	if user, ok := a.Auth.User(); ok {
		fmt.Printf("Logged in: %s (%s)\n", user.DisplayName, user.Profile)
	} else {
		fmt.Println("Logged in: no")
	}
	fmt.Printf("Cached locations: %d\n", a.Cache.Len())
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	if emailFlag == "" || passwordFlag == "" {
		return fmt.Errorf("--email and --password are required")
	}
	return withApp(func(a *app.App) error {
		resp, err := a.API.Login(context.Background(), emailFlag, passwordFlag)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := a.Auth.SaveUser(resp.User); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		fmt.Printf("Welcome back, %s\n", resp.User.DisplayName)
		warmCache(a, resp.User.ID)
		return nil
	})
}

func runSignup(cmd *cobra.Command, args []string) error {
	if nameFlag == "" || emailFlag == "" || passwordFlag == "" {
		return fmt.Errorf("--name, --email and --password are required")
	}
	return withApp(func(a *app.App) error {
		resp, err := a.API.Signup(context.Background(), nameFlag, emailFlag, passwordFlag, profileFlag)
		if err != nil {
			return fmt.Errorf("signup: %w", err)
		}
		if err := a.Auth.SaveUser(resp.User); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		fmt.Printf("Welcome to Alexandria, %s\n", resp.User.DisplayName)
		warmCache(a, resp.User.ID)
		return nil
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := auth.NewStore(config.ConfigDir())
	if err != nil {
		return fmt.Errorf("open auth store: %w", err)
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	fmt.Println("Logged out")
	return nil
}

func runContext(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		if offlineFlag {
			a.Net.Set(false)
		}

		userID := ""
		if user, ok := a.Auth.User(); ok {
			userID = user.ID
		}
		language := languageFlag
		if language == "" {
			language = a.Cfg.Settings.Language
		}

		rec := a.Cache.GetContextOffline(context.Background(), latFlag, lngFlag, userID, histcache.Options{Language: language})
		printRecord(rec)
		return nil
	})
}

func runCached(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		var records []histcache.Record
		if len(args) == 1 {
			records = a.Cache.SearchCached(args[0])
		} else {
			records = a.Cache.GetAllCached()
		}

		if len(records) == 0 {
			fmt.Println("No cached locations")
			return nil
		}
		for _, rec := range records {
			name := rec.LocationInfo.Name
			if rec.LandmarkName != "" {
				name = rec.LandmarkName
			}
			cachedAt := time.UnixMilli(rec.CachedAt).Format("2006-01-02 15:04")
			fmt.Printf("%-35s %-20s cached %s\n", name, rec.LocationInfo.HistoricalPeriod, cachedAt)
		}
		return nil
	})
}

func runPreload(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		userID := ""
		if user, ok := a.Auth.User(); ok {
			userID = user.ID
		}
		a.Cache.PreloadNearby(context.Background(), userID)
		fmt.Printf("Cache holds %d locations\n", a.Cache.Len())
		return nil
	})
}

func runEvents(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		resp, err := a.API.PredictedEvents(context.Background())
		if err != nil {
			return err
		}
		if len(resp.ValidatedEvents) == 0 {
			fmt.Println("No predicted events")
			return nil
		}
		for _, ev := range resp.ValidatedEvents {
			fmt.Printf("%s\n  %s %s @ %s (%.0f%% confidence)\n", ev.Title, ev.PredictedDate, ev.PredictedTime, ev.Venue, ev.ConfidenceScore*100)
			if ev.Reasoning != "" {
				fmt.Printf("  %s\n", ev.Reasoning)
			}
		}
		if len(resp.PatternInsights.DetectedTrends) > 0 {
			fmt.Printf("\nTrends: %s\n", strings.Join(resp.PatternInsights.DetectedTrends, ", "))
		}
		return nil
	})
}

func runSafety(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		resp, err := a.API.SafetyNet(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Alert level: %s\n", resp.AlertLevel)
		if resp.AlertMessage != "" {
			fmt.Println(resp.AlertMessage)
		}
		for _, tip := range resp.SafetyTips {
			fmt.Printf("  - %s\n", tip)
		}
		for _, svc := range resp.EmergencyServices {
			fmt.Printf("%s (%s): %s\n", svc.Name, svc.Type, svc.Phone)
		}
		return nil
	})
}

func runTopics(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		resp, err := a.API.TrendingTopics(context.Background())
		if err != nil {
			return err
		}
		for _, st := range resp.DiscussionStarters {
			fmt.Printf("%s\n  %s\n", st.Topic, st.StarterQuestion)
		}
		return nil
	})
}

func runRooms(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		user, err := a.CurrentUser()
		if err != nil {
			return err
		}
		resp, err := a.API.RoomSuggestions(context.Background(), api.UserActivity{
			UserID:   user.ID,
			UserText: interestsFlag,
			LocationHistory: []api.Neighborhood{
				{Neighborhood: "Downtown Alexandria"},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.RoomSuggestions) == 0 {
			fmt.Println("No room suggestions")
			return nil
		}
		for _, room := range resp.RoomSuggestions {
			fmt.Printf("%s (%.0f%% match)\n  %s\n", room.SuggestedRoomName, room.CompatibilityScore*100, room.Reason)
		}
		return nil
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		userType := "Tourist"
		if user, ok := a.Auth.User(); ok {
			userType = user.Profile
		}
		resp, err := a.API.Ask(context.Background(), strings.Join(args, " "), userType, a.Cfg.Settings)
		if err != nil {
			return err
		}
		fmt.Println(resp.Answer)
		if len(resp.FollowUpQuestions) > 0 {
			fmt.Println("\nYou could also ask:")
			for _, q := range resp.FollowUpQuestions {
				fmt.Printf("  - %s\n", q)
			}
		}
		return nil
	})
}

func runFeedback(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		userID := ""
		if user, ok := a.Auth.User(); ok {
			userID = user.ID
		}
		id, err := a.Feedback.Submit(context.Background(), feedback.Item{
			UserID:   userID,
			Category: categoryFlag,
			Message:  messageFlag,
			Rating:   ratingFlag,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Feedback recorded (%s)\n", id)

		// One-shot command: drain anything spooled by earlier offline runs
		// while we know the backend is reachable.
		if sent, err := a.Feedback.ProcessPending(context.Background()); err != nil {
			fmt.Printf("Queued delivery stopped: %v\n", err)
		} else if sent > 0 {
			fmt.Printf("Delivered %d queued items\n", sent)
		}
		return nil
	})
}

func runChat(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		user, err := a.CurrentUser()
		if err != nil {
			return err
		}

		url := a.Cfg.Chat.URL
		if url == "" {
			url, err = chat.EndpointURL(a.Cfg.Backend.BaseURL)
			if err != nil {
				return err
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go a.Net.Watch(ctx, a.Cfg.Backend.BaseURL, probeInterval)

		session := chat.NewSession(user, url, chat.Options{
			PingInterval:         time.Duration(a.Cfg.Chat.PingSeconds) * time.Second,
			MaxReconnectAttempts: a.Cfg.Chat.MaxReconnectAttempts,
		})
		defer session.Destroy()

		failed := make(chan struct{})
		session.Subscribe(func(ev chat.Event) {
			switch e := ev.(type) {
			case chat.Connected:
				fmt.Printf("* connected, joining %s\n", roomFlag)
				_ = session.JoinRoom(roomFlag)
			case chat.Disconnected:
				fmt.Printf("* disconnected (code %d)\n", e.Code)
			case chat.MessageReceived:
				if e.Frame.Type == "room_message" {
					fmt.Printf("%s\n", string(e.Frame.Raw))
				}
			case chat.ConnectionFailed:
				fmt.Println("* connection failed, giving up")
				close(failed)
			}
		})

		fmt.Println("myalex chat (type 'exit' to quit)")
		lines := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
			close(lines)
		}()

		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				input := strings.TrimSpace(line)
				if input == "" {
					continue
				}
				if input == "exit" || input == "quit" {
					_ = session.LeaveRoom(roomFlag)
					return nil
				}
				if err := session.SendMessage(roomFlag, input); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			case <-failed:
				return fmt.Errorf("chat connection failed")
			}
		}
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		userID := ""
		if user, ok := a.Auth.User(); ok {
			userID = user.ID
		}

		var notifier notify.Notifier = notify.Nop{}
		if a.Cfg.Notify.Telegram.Enabled {
			tg, err := notify.NewTelegram(a.Cfg.Notify.Telegram)
			if err != nil {
				return err
			}
			notifier = tg
		}

		svc := watch.NewService(a.Cfg.Watch, a.API, a.Cache, notifier, userID)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go a.Net.Watch(ctx, a.Cfg.Backend.BaseURL, probeInterval)
		if err := svc.Start(ctx); err != nil {
			return err
		}
		defer svc.Stop()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		fmt.Println("shutting down")
		return nil
	})
}

// warmCache pre-loads the landmark set once a session becomes active, so the
// first offline lookup already has something to serve.
func warmCache(a *app.App, userID string) {
	fmt.Println("Warming the offline cache for nearby landmarks...")
	a.Cache.PreloadNearby(context.Background(), userID)
	fmt.Printf("Cache holds %d locations\n", a.Cache.Len())
}

func printRecord(rec histcache.Record) {
	name := rec.LocationInfo.Name
	if rec.LandmarkName != "" {
		name = rec.LandmarkName
	}
	fmt.Printf("%s (%s)\n\n", name, rec.LocationInfo.HistoricalPeriod)
	fmt.Println(rec.HistoricalContext)
	for _, era := range rec.EraDetails {
		fmt.Printf("\n%s: %s\n", era.Era, era.Summary)
	}
	if rec.FromCache {
		fmt.Printf("\n(served from cache, saved %s)\n", time.UnixMilli(rec.CachedAt).Format("2006-01-02 15:04"))
	}
}
