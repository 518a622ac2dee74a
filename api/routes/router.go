package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookmarket-io/bookmarket-backend/api/controllers"
	"github.com/bookmarket-io/bookmarket-backend/api/middleware"
	"github.com/bookmarket-io/bookmarket-backend/internal/auth"
	"github.com/bookmarket-io/bookmarket-backend/internal/cart"
	"github.com/bookmarket-io/bookmarket-backend/internal/catalog"
	"github.com/bookmarket-io/bookmarket-backend/internal/listings"
	"github.com/bookmarket-io/bookmarket-backend/internal/loans"
	"github.com/bookmarket-io/bookmarket-backend/internal/orders"
	"github.com/bookmarket-io/bookmarket-backend/internal/suggestions"
	"github.com/bookmarket-io/bookmarket-backend/internal/wishlist"
	"github.com/bookmarket-io/bookmarket-backend/pkg/config"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	"github.com/bookmarket-io/bookmarket-backend/pkg/logger"
	pkgredis "github.com/bookmarket-io/bookmarket-backend/pkg/redis"
)

// Services bundles everything the HTTP layer depends on.
type Services struct {
	Auth        auth.Service
	Catalog     catalog.Service
	Listings    listings.Service
	Cart        cart.Service
	Orders      orders.Service
	Loans       loans.Service
	Suggestions suggestions.Service
	Wishlist    wishlist.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *pkgredis.Client,
	svcs Services,
) http.Handler {
	var idemStore pkgredis.IdempotencyStore
	if redisClient != nil {
		idemStore = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": dbP,
			"redis":    redisClient,
		}))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.Idempotency(idemStore, logg)).Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
	})

	// Catalog reads are public.
	r.Route("/api/v1/books", func(r chi.Router) {
		r.Get("/", controllers.CatalogList(svcs.Catalog, logg))
		r.Get("/{bookID}", controllers.CatalogGet(svcs.Catalog, logg))
		r.Get("/{bookID}/listings", controllers.ListingsByBook(svcs.Listings, logg))
	})
	r.Get("/api/v1/listings/{listingID}", controllers.ListingGet(svcs.Listings, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", controllers.ListingCreate(svcs.Listings, logg))
			r.Get("/mine", controllers.MyListings(svcs.Listings, logg))
			r.Patch("/{listingID}", controllers.ListingUpdate(svcs.Listings, logg))
			r.Post("/{listingID}/active", controllers.ListingSetActive(svcs.Listings, logg))
			r.Post("/{listingID}/stock", controllers.ListingAdjustStock(svcs.Listings, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Patch("/items/{listingID}", controllers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{listingID}", controllers.CartRemoveItem(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(svcs.Orders, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(svcs.Orders, logg))
			r.Get("/{orderID}", controllers.OrderGet(svcs.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(svcs.Orders, logg))
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/", controllers.LoanRequest(svcs.Loans, logg))
			r.Get("/", controllers.LoanList(svcs.Loans, logg))
			r.Get("/{loanID}", controllers.LoanGet(svcs.Loans, logg))
			r.Post("/{loanID}/cancel", controllers.LoanCancel(svcs.Loans, logg))
		})

		r.Route("/suggestions", func(r chi.Router) {
			r.Post("/", controllers.SuggestionCreate(svcs.Suggestions, logg))
			r.Get("/", controllers.SuggestionList(svcs.Suggestions, logg))
			r.Get("/{suggestionID}", controllers.SuggestionGet(svcs.Suggestions, logg))
			r.Post("/{suggestionID}/vote", controllers.SuggestionVote(svcs.Suggestions, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistGet(svcs.Wishlist, logg))
			r.Get("/ids", controllers.WishlistIDs(svcs.Wishlist, logg))
			r.Post("/items", controllers.WishlistAdd(svcs.Wishlist, logg))
			r.Delete("/items/{bookID}", controllers.WishlistRemove(svcs.Wishlist, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Route("/books", func(r chi.Router) {
				r.Post("/", controllers.CatalogCreate(svcs.Catalog, logg))
				r.Post("/from-suggestion/{suggestionID}", controllers.CatalogCreateFromSuggestion(svcs.Catalog, logg))
				r.Patch("/{bookID}", controllers.CatalogUpdate(svcs.Catalog, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/{orderID}/paid", controllers.OrderMarkPaid(svcs.Orders, logg))
				r.Post("/{orderID}/shipped", controllers.OrderMarkShipped(svcs.Orders, logg))
				r.Post("/{orderID}/delivered", controllers.OrderMarkDelivered(svcs.Orders, logg))
			})

			r.Route("/loans", func(r chi.Router) {
				r.Post("/{loanID}/check-out", controllers.LoanCheckOut(svcs.Loans, logg))
				r.Post("/{loanID}/return", controllers.LoanReturn(svcs.Loans, logg))
				r.Post("/{loanID}/lost", controllers.LoanMarkLost(svcs.Loans, logg))
			})

			r.Post("/suggestions/{suggestionID}/status", controllers.SuggestionSetStatus(svcs.Suggestions, logg))
		})
	})

	return r
}
