package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/JonasWeigert/PawTrack/app/controllers"
	"github.com/JonasWeigert/PawTrack/app/repository"
	"github.com/JonasWeigert/PawTrack/internal/pkg/audit"
	"github.com/JonasWeigert/PawTrack/internal/pkg/cache"
	"github.com/JonasWeigert/PawTrack/internal/pkg/database"
	"github.com/JonasWeigert/PawTrack/internal/pkg/env"
	"github.com/JonasWeigert/PawTrack/internal/pkg/locks"
	"github.com/JonasWeigert/PawTrack/internal/pkg/mail"
	"github.com/JonasWeigert/PawTrack/internal/pkg/payments"
	"github.com/JonasWeigert/PawTrack/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4100")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	payments.SetStripeKey(env.GetEnv("STRIPE_SECRET_KEY", ""))

	repos := repository.GetGlobalFactory()
	sink := audit.NewSink(database.GetDB())
	svc := payments.NewService(
		repos.GetSubscriptionRepository(),
		repos.GetUserRepository(),
		payments.NewStripeGateway(),
		sink,
		mail.NewMailer(),
		locks.New(cache.GetClient()),
	)
	controllers.InitializeBillingController(svc, sink)

	app := fiber.New(fiber.Config{
		AppName: "PawTrack Billing",
	})
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
