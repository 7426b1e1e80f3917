package commands

import (
	"database/sql"
	"time"

	"instructorscan-backend/lib/configutil"
	"instructorscan-backend/services/instructorscan"
	"instructorscan-backend/services/instructorscan/notify"
	"instructorscan-backend/services/instructorscan/report"
	"instructorscan-backend/services/instructorscan/scraper"
	"instructorscan-backend/services/instructorscan/store"
)

type ScheduleConfig struct {
	// cron expressions, evaluated in the venue's timezone
	Scans  []string `json:"scans"`
	Status string   `json:"status"`
}

type Config struct {
	Booking scraper.ClientOptions `json:"booking"`
	// paths relative to the booking root url
	RosterEndpoint   string `json:"roster_endpoint"`
	BookingsEndpoint string `json:"bookings_endpoint"`
	// venue operating hours, "15:04"
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`

	Instructors []scraper.Instructor `json:"instructors"`

	HorizonDays         int `json:"horizon_days"`
	ChunkDays           int `json:"chunk_days"`
	ChunkDelaySeconds   int `json:"chunk_delay_seconds"`
	RequestDelaySeconds int `json:"request_delay_seconds"`

	DatabaseFile    string `json:"database_file"`
	PublicDir       string `json:"public_dir"`
	PublicReportUrl string `json:"public_report_url"`

	Notify    notify.Options `json:"notify"`
	Schedules ScheduleConfig `json:"schedules"`
}

func (c *Config) applyDefaults() {
	if c.HorizonDays <= 0 {
		c.HorizonDays = 10
	}
	if c.ChunkDays <= 0 {
		c.ChunkDays = 4
	}
	if c.ChunkDelaySeconds <= 0 {
		c.ChunkDelaySeconds = 5
	}
	if c.RequestDelaySeconds <= 0 {
		c.RequestDelaySeconds = 1
	}
	if c.DatabaseFile == "" {
		c.DatabaseFile = "instructorscan.db"
	}
	if c.PublicDir == "" {
		c.PublicDir = "./public"
	}
	if len(c.Schedules.Scans) == 0 {
		c.Schedules.Scans = []string{"5 11 * * *", "5 19 * * *"}
	}
	if c.Schedules.Status == "" {
		c.Schedules.Status = "5 6 * * *"
	}
}

// runtime bundles everything the commands operate on, wired from one
// config read.
type runtime struct {
	config    Config
	client    *scraper.Client
	database  *sql.DB
	snapshots store.Store
	artifacts report.FilesystemStore
	service   instructorscan.Service
}

func buildRuntime() (runtime, error) {
	config, err := configutil.ReadConfig[Config](configFile)
	if err != nil {
		return runtime{}, err
	}
	config.applyDefaults()

	client, err := scraper.NewClient(config.Booking)
	if err != nil {
		return runtime{}, err
	}
	fetcher := scraper.NewFetcher(client, scraper.FetcherOptions{
		Instructors:      config.Instructors,
		RosterEndpoint:   config.RosterEndpoint,
		BookingsEndpoint: config.BookingsEndpoint,
		RequestDelay:     time.Duration(config.RequestDelaySeconds) * time.Second,
		OpeningTime:      config.OpeningTime,
		ClosingTime:      config.ClosingTime,
	})

	database, err := store.Open(config.DatabaseFile)
	if err != nil {
		client.Close()
		return runtime{}, err
	}
	snapshots := store.NewStore(database)

	artifacts, err := report.NewFilesystemStore(config.PublicDir)
	if err != nil {
		client.Close()
		database.Close()
		return runtime{}, err
	}
	notifier := notify.NewNotifier(config.Notify)

	service := instructorscan.NewService(
		fetcher, snapshots, artifacts, notifier,
		instructorscan.Options{
			Instructors:     config.Instructors,
			HorizonDays:     config.HorizonDays,
			ChunkDays:       config.ChunkDays,
			ChunkDelay:      time.Duration(config.ChunkDelaySeconds) * time.Second,
			PublicReportUrl: config.PublicReportUrl,
		},
	)

	return runtime{
		config:    config,
		client:    client,
		database:  database,
		snapshots: snapshots,
		artifacts: artifacts,
		service:   service,
	}, nil
}

func (r runtime) Close() {
	r.client.Close()
	r.database.Close()
}
