package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/nbouchiba/allure/internal/coach"
	"github.com/nbouchiba/allure/internal/importer"
	"github.com/nbouchiba/allure/internal/llm"
	"github.com/nbouchiba/allure/internal/plan"
	"github.com/nbouchiba/allure/internal/providers"
	"github.com/nbouchiba/allure/internal/reconcile"
	"github.com/nbouchiba/allure/internal/search"
	"github.com/nbouchiba/allure/internal/strava"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx := context.Background()

	args := os.Args[1:]
	command := "chat"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	var err error
	switch command {
	case "chat":
		err = runChat(ctx, args)
	case "sync":
		err = runSync(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "search":
		err = runSearch(ctx, args)
	case "profile":
		err = runProfile(ctx, args)
	default:
		err = fmt.Errorf("unknown command %q (expected chat, sync, watch, search or profile)", command)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	dbFlag := fs.String("db", "", "Path to the session database (default: user config dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx, *dbFlag)
	if err != nil {
		return err
	}
	defer env.Close()

	client, modelName, err := providers.NewClientFromEnv()
	if err != nil {
		return err
	}
	log.Printf("coach ready (model: %s)", modelName)
	log.Println("commands: /adjust <message> to revise the current plan, /reset to start over")

	c := coach.New(env.Store, client, reconcile.New(env.Store, env.Log), env.Log)

	s := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !s.Scan() {
			break
		}
		input := strings.TrimSpace(s.Text())
		if input == "" {
			continue
		}

		if input == "/reset" {
			if err := c.Reset(ctx); err != nil {
				log.Printf("reset failed: %v", err)
			} else {
				fmt.Println("conversation cleared")
			}
			continue
		}

		adjust := false
		if rest, ok := strings.CutPrefix(input, "/adjust "); ok {
			adjust = true
			input = rest
		}

		reply, err := c.Send(ctx, input, adjust)
		if errors.Is(err, coach.ErrSuperseded) {
			continue
		}
		if err != nil {
			if llm.IsRetryable(err) {
				fmt.Println("the coach is unreachable right now, try again in a moment")
			} else {
				log.Printf("exchange failed: %v", err)
			}
			continue
		}

		fmt.Printf("coach> %s\n", reply.Message)
		if reply.Applied != nil {
			fmt.Printf("(plan updated: %d removed, %d added)\n", reply.Applied.Deleted, reply.Applied.Inserted)
		}
	}

	return s.Err()
}

func runSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	dbFlag := fs.String("db", "", "Path to the session database (default: user config dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx, *dbFlag)
	if err != nil {
		return err
	}
	defer env.Close()

	syncer, err := buildSyncer(ctx, env)
	if err != nil {
		return err
	}

	res, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}
	log.Printf("sync done: %d imported, %d already known", res.Inserted, res.Skipped)
	return nil
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	dbFlag := fs.String("db", "", "Path to the session database (default: user config dir)")
	dirFlag := fs.String("dir", "", "Drop folder for activity export files (default: from config)")
	scheduleFlag := fs.String("schedule", "", "Cron expression for periodic sync (default: from config, fallback hourly)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx, *dbFlag)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer, err := buildSyncer(ctx, env)
	if err != nil {
		return err
	}

	schedule := *scheduleFlag
	if schedule == "" {
		schedule = env.Config.SyncSchedule
	}
	if schedule == "" {
		schedule = "@hourly"
	}

	cr := cron.New()
	if _, err := cr.AddFunc(schedule, func() {
		if res, err := syncer.Sync(ctx); err != nil {
			env.Log.WithError(err).Error("scheduled sync failed")
		} else if res.Inserted > 0 {
			env.Log.WithField("inserted", res.Inserted).Info("scheduled sync imported activities")
		}
	}); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	cr.Start()
	defer cr.Stop()
	log.Printf("sync scheduled (%s)", schedule)

	watchDir := *dirFlag
	if watchDir == "" {
		watchDir = env.Config.WatchDir
	}
	if watchDir == "" {
		// No drop folder configured, just keep the scheduler running.
		<-ctx.Done()
		return nil
	}

	imp := importer.New(env.Store, env.Log)
	log.Printf("watching %s for activity exports", watchDir)
	if err := importer.NewWatcher(watchDir, imp, env.Log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	dbFlag := fs.String("db", "", "Path to the session database (default: user config dir)")
	limitFlag := fs.Int("limit", 10, "Maximum number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: allure search <query>")
	}
	query := strings.Join(fs.Args(), " ")

	env, err := prepareRuntimeEnv(ctx, *dbFlag)
	if err != nil {
		return err
	}
	defer env.Close()

	idx, err := search.Open(env.IndexPath())
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.Rebuild(ctx, env.Store); err != nil {
		return err
	}

	ids, err := idx.Search(query, *limitFlag)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no matching sessions")
		return nil
	}

	for _, id := range ids {
		ts, err := env.Store.GetSession(ctx, id)
		if err != nil {
			continue
		}
		fmt.Printf("%s  %-10s %-12s %3d min  %s\n",
			ts.Date.Format("2006-01-02"), ts.Sport, ts.Discipline, ts.DurationMin, ts.Description)
	}
	return nil
}

func runProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	dbFlag := fs.String("db", "", "Path to the session database (default: user config dir)")
	goalFlag := fs.String("goal", "", "Goal description (e.g. 'marathon')")
	goalDateFlag := fs.String("goal-date", "", "Goal date (YYYY-MM-DD)")
	masFlag := fs.Float64("mas", 0, "Maximal aerobic speed in km/h")
	maxHRFlag := fs.Int("max-hr", 0, "Maximum heart rate")
	restingHRFlag := fs.Int("resting-hr", 0, "Resting heart rate")
	weeklyFlag := fs.Float64("weekly-hours", 0, "Weekly training hours")
	sportsFlag := fs.String("sports", "", "Comma-separated list of practiced sports")
	constraintsFlag := fs.String("constraints", "", "Scheduling constraints, free text")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx, *dbFlag)
	if err != nil {
		return err
	}
	defer env.Close()

	profile, err := env.Store.LoadProfile(ctx)
	if err != nil {
		return err
	}
	if profile == nil {
		profile = &plan.AthleteProfile{}
	}

	changed := false
	if *goalFlag != "" {
		profile.GoalType = *goalFlag
		changed = true
	}
	if *goalDateFlag != "" {
		d, err := time.ParseInLocation("2006-01-02", *goalDateFlag, time.Local)
		if err != nil {
			return fmt.Errorf("invalid goal date %q: %w", *goalDateFlag, err)
		}
		profile.GoalDate = &d
		changed = true
	}
	if *masFlag > 0 {
		v := *masFlag
		profile.MaxAerobicSpeedKmh = &v
		changed = true
	}
	if *maxHRFlag > 0 {
		v := *maxHRFlag
		profile.MaxHR = &v
		changed = true
	}
	if *restingHRFlag > 0 {
		v := *restingHRFlag
		profile.RestingHR = &v
		changed = true
	}
	if *weeklyFlag > 0 {
		v := *weeklyFlag
		profile.WeeklyHours = &v
		changed = true
	}
	if *sportsFlag != "" {
		var sports []string
		for _, s := range strings.Split(*sportsFlag, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sports = append(sports, s)
			}
		}
		profile.Sports = sports
		changed = true
	}
	if *constraintsFlag != "" {
		profile.Constraints = *constraintsFlag
		changed = true
	}

	if changed {
		profile.OnboardingCompleted = true
		if err := env.Store.SaveProfile(ctx, profile); err != nil {
			return err
		}
		fmt.Println("profile saved")
	}

	out, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func buildSyncer(ctx context.Context, env *runtimeEnv) (*importer.Syncer, error) {
	c, err := env.Cache(ctx)
	if err != nil {
		return nil, err
	}

	stravaClient, err := strava.NewAuthedClient(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("strava is not connected: %w", err)
	}

	fetch := func(ctx context.Context, after int64, perPage int) ([]strava.Activity, error) {
		return strava.GetActivities(ctx, stravaClient, after, perPage)
	}

	imp := importer.New(env.Store, env.Log)
	return importer.NewSyncer(fetch, imp, c, env.Log), nil
}
