package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nhtruong/restaurant-pos/internal/cart"
	"github.com/nhtruong/restaurant-pos/internal/catalog"
	"github.com/nhtruong/restaurant-pos/internal/events"
	posHandler "github.com/nhtruong/restaurant-pos/internal/handler/http"
	"github.com/nhtruong/restaurant-pos/internal/order"
	"github.com/nhtruong/restaurant-pos/internal/payment"
	"github.com/nhtruong/restaurant-pos/internal/reservation"
	"github.com/nhtruong/restaurant-pos/internal/table"
)

// NewRouter wires repositories, services and handlers onto one chi mux.
func NewRouter(pool *pgxpool.Pool, publisher events.Publisher, account payment.BankAccount) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	tableRepo := table.NewRepository(pool)
	catalogRepo := catalog.NewRepository(pool)
	cartRepo := cart.NewRepository(pool)
	orderRepo := order.NewRepository(pool)
	paymentRepo := payment.NewRepository(pool)
	reservationRepo := reservation.NewRepository(pool)

	tableService := table.NewService(tableRepo, publisher)
	cartService := cart.NewService(cartRepo, tableRepo, catalogRepo, publisher)
	orderService := order.NewService(orderRepo, tableRepo, cartRepo, publisher)
	paymentService := payment.NewService(paymentRepo, orderRepo, account, publisher)
	reservationService := reservation.NewService(reservationRepo, tableRepo, publisher)

	router.Route("/api/v1", func(api chi.Router) {
		posHandler.NewTableHandler(tableService).RegisterRoutes(api)
		posHandler.NewCartHandler(cartService).RegisterRoutes(api)
		posHandler.NewOrderHandler(orderService).RegisterRoutes(api)
		posHandler.NewPaymentHandler(paymentService).RegisterRoutes(api)
		posHandler.NewReservationHandler(reservationService).RegisterRoutes(api)
	})

	return router
}
