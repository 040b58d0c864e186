package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/htvu/Athene/config"
	"github.com/htvu/Athene/database"
	_ "github.com/htvu/Athene/docs" // Swagger docs - auto-generated
	studentctrl "github.com/htvu/Athene/internal/controller/student"
	teacherctrl "github.com/htvu/Athene/internal/controller/teacher"
	"github.com/htvu/Athene/internal/logger"
	"github.com/htvu/Athene/internal/middleware"
	"github.com/htvu/Athene/internal/model"
	"github.com/htvu/Athene/internal/repository"
	"github.com/htvu/Athene/internal/service"
	"github.com/htvu/Athene/internal/session"
	"github.com/htvu/Athene/internal/wizard"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Athene Assessment API
// @version 1.0
// @description Assessment authoring wizard and proctored timed delivery with integrity monitoring.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
		),

		// Repositories layer
		fx.Provide(
			repository.NewAssessmentRepository,
			repository.NewQuestionRepository,
			repository.NewAttemptRepository,
			repository.NewAnswerRepository,
		),

		// Services layer
		fx.Provide(
			service.NewGradingService,
			service.NewGeminiFeedbackService,
			service.NewAssessmentService,
			service.NewAttemptService,
		),

		// Session layers: the authoring wizards and the live attempt sessions
		fx.Provide(
			wizard.NewManager,
			session.NewManager,
		),

		// API controllers
		fx.Provide(
			teacherctrl.NewWizardController,
			studentctrl.NewAttemptController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger UI at /swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages the server
// lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	wizardCtrl *teacherctrl.WizardController,
	attemptCtrl *studentctrl.AttemptController,
) {
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret))

	teacherGroup := api.Group("/teacher")
	if cfg.JWTSecret != "" {
		teacherGroup.Use(middleware.RequireRole(middleware.RoleInstructor))
	}
	{
		wizards := teacherGroup.Group("/wizards")
		wizards.POST("", wizardCtrl.BeginWizard)
		wizards.GET("/:wizard_id", wizardCtrl.GetWizardState)
		wizards.PUT("/:wizard_id/metadata", wizardCtrl.SubmitMetadata)
		wizards.POST("/:wizard_id/questions", wizardCtrl.StageQuestion)
		wizards.DELETE("/:wizard_id/questions/:position", wizardCtrl.RemoveStagedQuestion)
		wizards.POST("/:wizard_id/commit", wizardCtrl.CommitQuestions)
		wizards.POST("/:wizard_id/publish", wizardCtrl.Publish)
		wizards.POST("/:wizard_id/draft", wizardCtrl.SaveDraft)

		teacherGroup.GET("/assessments/:assessment_id", wizardCtrl.GetAssessment)
	}

	studentGroup := api.Group("/student")
	{
		studentGroup.GET("/assessments", attemptCtrl.ListAssessments)
		studentGroup.GET("/assessments/:assessment_id", attemptCtrl.GetAssessmentDetail)
		studentGroup.POST("/assessments/:assessment_id/attempts", attemptCtrl.StartAttempt)

		studentGroup.PUT("/attempts/:attempt_id/answers", attemptCtrl.RecordAnswer)
		studentGroup.POST("/attempts/:attempt_id/visibility", attemptCtrl.ReportVisibility)
		studentGroup.POST("/attempts/:attempt_id/submit", attemptCtrl.SubmitAttempt)
		studentGroup.GET("/attempts/:attempt_id/result", attemptCtrl.GetResult)
		studentGroup.GET("/attempts", attemptCtrl.ListMyAttempts)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Athene assessment server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Assessment{},
		&model.Question{},
		&model.Option{},
		&model.Attempt{},
		&model.AnswerRecord{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
