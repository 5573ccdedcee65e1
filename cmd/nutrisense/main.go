package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/nutrisense/internal/advisor"
	"github.com/lox/nutrisense/internal/api"
	"github.com/lox/nutrisense/internal/export"
	"github.com/lox/nutrisense/internal/soil"
	"github.com/lox/nutrisense/internal/store"
)

type aiFlags struct {
	APIKey      string        `name:"api-key" env:"GROQ_API_KEY" help:"API key for the recommendation provider."`
	BaseURL     string        `name:"base-url" env:"AI_BASE_URL" default:"https://api.groq.com/openai/v1" help:"OpenAI-compatible API base URL."`
	Model       string        `name:"model" env:"AI_MODEL" default:"llama-3.3-70b-versatile" help:"Default model."`
	Temperature float64       `name:"temperature" env:"AI_TEMPERATURE" default:"0.3" help:"Sampling temperature."`
	MaxTokens   int64         `name:"max-tokens" env:"AI_MAX_TOKENS" default:"600" help:"Maximum tokens per response."`
	Timeout     time.Duration `name:"timeout" env:"AI_TIMEOUT" default:"30s" help:"Per-attempt request timeout."`
	MaxAttempts int           `name:"max-attempts" env:"AI_MAX_ATTEMPTS" default:"3" help:"Attempts before falling back to a warning."`
	RetryDelay  time.Duration `name:"retry-delay" env:"AI_RETRY_DELAY" default:"1s" help:"Delay between attempts."`
}

func (f aiFlags) config() advisor.Config {
	return advisor.Config{
		APIKey:      f.APIKey,
		BaseURL:     f.BaseURL,
		Model:       f.Model,
		Temperature: f.Temperature,
		MaxTokens:   f.MaxTokens,
		Timeout:     f.Timeout,
		MaxAttempts: f.MaxAttempts,
		RetryDelay:  f.RetryDelay,
	}
}

type CLI struct {
	DB string  `name:"db" env:"NUTRISENSE_DB" default:"data/nutrisense.db" type:"path" help:"Path to SQLite database."`
	AI aiFlags `embed:"" prefix:"ai-"`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Run the HTTP API (default)."`
	Analyze AnalyzeCmd `cmd:"" help:"Analyse one reading and print the result as JSON."`
	Export  ExportCmd  `cmd:"" help:"Export stored history as CSV."`
}

type ServeCmd struct {
	Port        string   `env:"PORT" default:"8000" help:"HTTP server port."`
	Environment string   `env:"ENVIRONMENT" default:"production" help:"Deployment environment; development exposes error detail."`
	CORSOrigins []string `name:"cors-origins" env:"CORS_ORIGINS" sep:"," help:"Allowed CORS origins."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	db, st, err := openStore(cli.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	adv := advisor.New(cli.AI.config())
	if !adv.Configured() {
		log.Println("GROQ_API_KEY not set, recommendations disabled")
	}

	server := api.NewServer(st, adv, c.Port, api.Options{
		Environment: c.Environment,
		CORSOrigins: c.CORSOrigins,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Println("shutdown complete")
	return nil
}

type AnalyzeCmd struct {
	PH          float64 `name:"ph" required:"" help:"Soil pH (0-14)."`
	EC          float64 `name:"ec" required:"" help:"Electrical conductivity in dS/m."`
	Moisture    float64 `required:"" help:"Moisture content in %."`
	Nitrogen    float64 `required:"" help:"Available nitrogen in mg/kg."`
	Phosphorus  float64 `required:"" help:"Available phosphorus in mg/kg."`
	Potassium   float64 `required:"" help:"Available potassium in mg/kg."`
	Microbial   float64 `required:"" help:"Microbial activity index (0-10)."`
	Temperature float64 `required:"" help:"Soil temperature in °C."`
	Location    string  `help:"Sample location."`
	Save        bool    `help:"Store the result in history."`
}

func (c *AnalyzeCmd) Run(cli *CLI) error {
	reading, err := soil.NewReading(map[soil.Field]float64{
		soil.PH:          c.PH,
		soil.EC:          c.EC,
		soil.Moisture:    c.Moisture,
		soil.Nitrogen:    c.Nitrogen,
		soil.Phosphorus:  c.Phosphorus,
		soil.Potassium:   c.Potassium,
		soil.Microbial:   c.Microbial,
		soil.Temperature: c.Temperature,
	})
	if err != nil {
		return err
	}

	var location *string
	if c.Location != "" {
		location = &c.Location
	}
	analysis := soil.Analyze(reading, location, time.Now().UTC())
	if analysis.Degraded != nil {
		log.Printf("score degraded: %v", analysis.Degraded)
	}

	if c.Save {
		db, st, err := openStore(cli.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		rec, created, err := st.Save(context.Background(), reading, analysis.HealthScore, store.SaveOptions{Location: location})
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		if created {
			log.Printf("saved record %d", rec.ID)
		} else {
			log.Printf("reading already stored as record %d", rec.ID)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(analysis)
}

type ExportCmd struct {
	Location string `help:"Only export records whose location contains this text."`
	Limit    int    `default:"100" help:"Maximum records to export."`
	Output   string `short:"o" type:"path" help:"Write to this file instead of stdout."`
}

func (c *ExportCmd) Run(cli *CLI) error {
	db, st, err := openStore(cli.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := st.List(context.Background(), store.ListOptions{Location: c.Location, Limit: c.Limit})
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no records found to export")
	}

	out := os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := export.WriteCSV(out, records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if c.Output != "" {
		log.Printf("exported %d records to %s", len(records), c.Output)
	}
	return nil
}

func openStore(path string) (*sql.DB, *store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, st, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("nutrisense"),
		kong.Description("Soil analysis API with health scoring and agronomic recommendations."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
