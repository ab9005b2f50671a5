// cmd/api/main.go
// Main entry point for the application
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Internal packages
	"github.com/ryvinapp/ryvin-backend/internal/auth"
	"github.com/ryvinapp/ryvin-backend/internal/common/database"
	"github.com/ryvinapp/ryvin-backend/internal/config"
	"github.com/ryvinapp/ryvin-backend/internal/journey"
	"github.com/ryvinapp/ryvin-backend/internal/matching"
	"github.com/ryvinapp/ryvin-backend/internal/notify"
	"github.com/ryvinapp/ryvin-backend/internal/questionnaire"
)

var startTime = time.Now()

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting Ryvin Matchmaking API")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	log.Printf("✅ Configuration loaded")

	// 3. Validate configuration
	log.Println("\n✔️  Step 3: Validating configuration...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	// 4. Connect to PostgreSQL
	log.Println("\n🗄️  Step 4: Connecting to PostgreSQL...")
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ Failed to connect to PostgreSQL:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("❌ Failed to ping PostgreSQL:", err)
	}
	log.Println("✅ Connected to PostgreSQL successfully")

	// 5. Connect to Redis (optional)
	log.Println("\n📮 Step 5: Connecting to Redis...")
	var redisClient *redis.Client

	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable: %v, continuing without score cache", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("✅ Connected to Redis successfully")
		}
	} else {
		log.Println("⚠️  Redis URL not configured, skipping Redis connection")
	}

	// 6. Run database migrations
	log.Println("\n🔨 Step 6: Running database migrations...")
	if err := runMigrations(db); err != nil {
		log.Printf("❌ Migration error: %v", err)
		log.Fatal("Failed to run migrations")
	}
	log.Println("✅ Database migrations completed")

	// 7. Initialize Questionnaire system
	log.Println("\n📝 Step 7: Initializing Questionnaire system...")

	questionnaireRepo := questionnaire.NewPostgresRepository(db)

	if err := seedQuestionnaireFields(db); err != nil {
		log.Printf("⚠️  Warning: Failed to seed questionnaire fields: %v", err)
	}

	catalog, err := questionnaire.LoadCatalog(context.Background(), questionnaireRepo)
	if err != nil {
		log.Fatal("❌ Failed to load questionnaire catalog:", err)
	}
	catalogHolder := questionnaire.NewHolder(catalog)
	log.Printf("   ✅ Catalog v%d loaded (%d fields)", catalog.Version(), catalog.Len())

	// Score cache doubles as the invalidation hook for answer changes
	var scoreCache *matching.ScoreCache
	var invalidator questionnaire.ScoreInvalidator
	if redisClient != nil {
		scoreCache = matching.NewScoreCache(redisClient, cfg.ScoreCacheTTL)
		invalidator = scoreCache
		log.Println("   ✅ Score cache enabled")
	} else {
		log.Println("   ⚠️  Score cache disabled (no Redis)")
	}

	questionnaireService := questionnaire.NewService(questionnaireRepo, catalogHolder, invalidator)
	questionnaireHandler := questionnaire.NewHandler(questionnaireService)

	// Periodic catalog refresh picks up field changes made out of band
	go refreshCatalog(questionnaireService, cfg.CatalogRefresh)
	log.Printf("   ✅ Catalog refresh scheduled (every %s)", cfg.CatalogRefresh)

	log.Println("✅ Questionnaire system initialized")

	// 8. Initialize Journey system
	log.Println("\n🧭 Step 8: Initializing Journey system...")

	journeyRepo := journey.NewPostgresRepository(db)

	// Initialize email provider
	var emailProvider notify.EmailProvider
	switch cfg.EmailProvider {
	case "sendgrid":
		emailProvider = notify.NewSendGridEmailProvider(cfg.SendGridAPIKey, cfg.EmailFrom, "Ryvin")
		log.Println("   ✅ Using SendGrid for emails")
	default:
		emailProvider = notify.NewMockEmailProvider()
		log.Println("   ⚠️  Using mock email provider (development mode)")
	}

	// Initialize SMS provider
	var smsProvider notify.SMSProvider
	switch cfg.SMSProvider {
	case "twilio":
		smsProvider = notify.NewTwilioSMSProvider(
			cfg.TwilioAccountSID,
			cfg.TwilioAuthToken,
			cfg.TwilioFromNumber,
		)
		log.Println("   ✅ Using Twilio for SMS")
	default:
		smsProvider = notify.NewMockSMSProvider()
		log.Println("   ⚠️  Using mock SMS provider (development mode)")
	}

	notifyService := notify.NewService(notify.NewContactRepository(db), emailProvider, smsProvider)

	journeyConfig := journey.Config{
		ProposalTTL:        cfg.ProposalTTL,
		MeetingResponseTTL: cfg.MeetingResponseTTL,
		FeedbackWindow:     cfg.FeedbackWindow,
		MaxMeetingRetries:  cfg.MaxMeetingRetries,
	}

	journeyService := journey.NewService(journeyRepo, notifyService, journeyConfig)
	journeyHandler := journey.NewHandler(journeyService)

	// Start deadline sweeper
	sweeper := journey.NewSweeper(journeyService, cfg.SweepInterval)
	sweeper.Start(context.Background())
	log.Printf("   ✅ Deadline sweeper started (every %s)", cfg.SweepInterval)

	log.Println("✅ Journey system initialized")

	// 9. Initialize Matching system
	log.Println("\n💕 Step 9: Initializing Matching system...")

	matchingRepo := matching.NewPostgresRepository(db)

	// The journey repository answers pair-level questions for ranking
	ranker := matching.NewRanker(journeyRepo, cfg.DeclineCooldown)

	matchingService := matching.NewService(
		matchingRepo,
		questionnaireRepo,
		catalogHolder,
		ranker,
		scoreCache,
		cfg.RankingPoolLimit,
	)
	matchingHandler := matching.NewHandler(matchingService, cfg.MaxRankingResults)
	log.Println("✅ Matching system initialized")

	// 10. Setup routes
	log.Println("\n🛣️  Step 10: Setting up routes...")
	router := mux.NewRouter()

	// Health check and metrics
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	questionnaire.RegisterRoutes(router, questionnaireHandler, authMiddleware)
	log.Println("   ✅ Questionnaire routes registered")

	matching.RegisterRoutes(router, matchingHandler, authMiddleware)
	log.Println("   ✅ Matching routes registered")

	journey.RegisterRoutes(router, journeyHandler, authMiddleware)
	log.Println("   ✅ Journey routes registered")

	// Add middleware
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	// 11. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("\n========================================")
		log.Printf("🚀 Server starting on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited gracefully")
}

func runMigrations(db *sqlx.DB) error {
	log.Println("   - Creating/updating tables...")

	migrations := []string{
		// Users table. Identity lives in a separate service; this keeps
		// the profile attributes ranking and notifications need.
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            email VARCHAR(255) UNIQUE,
            phone_number VARCHAR(20),
            display_name VARCHAR(100),
            gender VARCHAR(20) NOT NULL DEFAULT '',
            birth_date DATE,
            latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
            longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
            is_verified BOOLEAN NOT NULL DEFAULT FALSE,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            preferred_gender VARCHAR(20),
            preferred_min_age INTEGER,
            preferred_max_age INTEGER,
            preferred_distance_km DOUBLE PRECISION,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		// Questionnaire catalog
		`CREATE TABLE IF NOT EXISTS questionnaire_fields (
            id VARCHAR(100) PRIMARY KEY,
            category VARCHAR(100) NOT NULL,
            label VARCHAR(255) NOT NULL DEFAULT '',
            weight DOUBLE PRECISION NOT NULL,
            answer_kind VARCHAR(20) NOT NULL,
            comparison_rule VARCHAR(20) NOT NULL DEFAULT 'similarity',
            min_value DOUBLE PRECISION NOT NULL DEFAULT 0,
            max_value DOUBLE PRECISION NOT NULL DEFAULT 0,
            options JSONB,
            compat_table JSONB,
            deal_breaker BOOLEAN NOT NULL DEFAULT FALSE,
            position INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		// Single-row catalog version, bumped whenever the field set changes
		`CREATE TABLE IF NOT EXISTS catalog_version (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            version BIGINT NOT NULL DEFAULT 1,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`INSERT INTO catalog_version (id, version) VALUES (1, 1)
         ON CONFLICT (id) DO NOTHING`,

		// Any change to the field set bumps the version, so cached scores
		// keyed by it go stale immediately
		`CREATE OR REPLACE FUNCTION bump_catalog_version() RETURNS trigger AS $$
         BEGIN
             UPDATE catalog_version SET version = version + 1, updated_at = NOW() WHERE id = 1;
             RETURN NULL;
         END;
         $$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS trg_bump_catalog_version ON questionnaire_fields`,
		`CREATE TRIGGER trg_bump_catalog_version
            AFTER INSERT OR UPDATE OR DELETE ON questionnaire_fields
            FOR EACH STATEMENT EXECUTE FUNCTION bump_catalog_version()`,

		// One answer per user per field
		`CREATE TABLE IF NOT EXISTS questionnaire_responses (
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            field_id VARCHAR(100) NOT NULL REFERENCES questionnaire_fields(id) ON DELETE CASCADE,
            value TEXT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (user_id, field_id)
        )`,

		// Journeys. user1_id < user2_id keeps the pair canonical.
		`CREATE TABLE IF NOT EXISTS journeys (
            id UUID PRIMARY KEY,
            user1_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            user2_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            stage VARCHAR(30) NOT NULL,
            version BIGINT NOT NULL DEFAULT 1,
            consents JSONB NOT NULL DEFAULT '{}',
            deadline TIMESTAMPTZ,
            meeting_retries INTEGER NOT NULL DEFAULT 0,
            initiated_by BIGINT NOT NULL,
            ended_by BIGINT,
            end_reason TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (user1_id < user2_id)
        )`,

		// At most one open journey per pair
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_journeys_open_pair
            ON journeys (user1_id, user2_id)
            WHERE stage NOT IN ('ongoing', 'declined', 'expired')`,

		`CREATE INDEX IF NOT EXISTS idx_journeys_deadline
            ON journeys (deadline)
            WHERE deadline IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS journey_stage_history (
            id BIGSERIAL PRIMARY KEY,
            journey_id UUID NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
            stage VARCHAR(30) NOT NULL,
            actor BIGINT,
            occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE INDEX IF NOT EXISTS idx_journey_stage_history_journey
            ON journey_stage_history (journey_id, occurred_at)`,

		`CREATE TABLE IF NOT EXISTS meeting_requests (
            id UUID PRIMARY KEY,
            journey_id UUID NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
            proposed_by BIGINT NOT NULL,
            proposed_time TIMESTAMPTZ NOT NULL,
            location TEXT NOT NULL DEFAULT '',
            status VARCHAR(20) NOT NULL DEFAULT 'pending',
            deadline TIMESTAMPTZ NOT NULL,
            responded_at TIMESTAMPTZ,
            completed_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE INDEX IF NOT EXISTS idx_meeting_requests_journey
            ON meeting_requests (journey_id, created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_meeting_requests_pending
            ON meeting_requests (deadline)
            WHERE status = 'pending'`,

		// One feedback per participant per meeting
		`CREATE TABLE IF NOT EXISTS meeting_feedback (
            id UUID PRIMARY KEY,
            meeting_id UUID NOT NULL REFERENCES meeting_requests(id) ON DELETE CASCADE,
            submitted_by BIGINT NOT NULL,
            rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
            comment TEXT NOT NULL DEFAULT '',
            wants_to_continue BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (meeting_id, submitted_by)
        )`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// seedQuestionnaireFields installs the starter catalog on first boot.
// Existing fields are left untouched.
func seedQuestionnaireFields(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM questionnaire_fields`); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	log.Println("   - Seeding starter questionnaire fields...")

	seeds := []string{
		`INSERT INTO questionnaire_fields
            (id, category, label, weight, answer_kind, comparison_rule, min_value, max_value, position)
         VALUES
            ('lifestyle.exercise', 'lifestyle', 'How often do you exercise?', 1.0, 'scale', 'similarity', 1, 5, 1),
            ('lifestyle.going_out', 'lifestyle', 'How often do you go out?', 1.0, 'scale', 'similarity', 1, 5, 2),
            ('values.family_importance', 'values', 'How important is family to you?', 2.0, 'scale', 'similarity', 1, 5, 3)`,
		`INSERT INTO questionnaire_fields
            (id, category, label, weight, answer_kind, comparison_rule, options, position)
         VALUES
            ('lifestyle.smoking', 'lifestyle', 'Do you smoke?', 1.5, 'single_choice', 'exact_match',
             '["never", "occasionally", "regularly"]', 4),
            ('values.religion', 'values', 'How would you describe your faith?', 1.5, 'single_choice', 'exact_match',
             '["practicing", "cultural", "not_religious"]', 5)`,
		`INSERT INTO questionnaire_fields
            (id, category, label, weight, answer_kind, comparison_rule, deal_breaker, position)
         VALUES
            ('values.wants_children', 'values', 'Do you want children?', 2.0, 'boolean', 'exact_match', TRUE, 6)`,
	}

	for _, seed := range seeds {
		if _, err := db.Exec(seed); err != nil {
			return err
		}
	}

	return nil
}

func refreshCatalog(svc questionnaire.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := svc.ReloadCatalog(context.Background()); err != nil {
			log.Printf("⚠️  Catalog reload failed: %v", err)
		}
	}
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("📥 %s %s from %s (%v)", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
