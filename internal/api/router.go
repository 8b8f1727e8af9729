package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config configures the development backend.
type Config struct {
	DB        *sql.DB
	JWTSecret string
	// BackupDir holds backup and upload files. Empty disables the file
	// endpoints.
	BackupDir string
	// LogPath is the server log served by /get_log.
	LogPath string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	a := authenticator{DB: cfg.DB, JWTSecret: cfg.JWTSecret}

	authHandler := &AuthHandler{authenticator: a}
	usersHandler := &UsersHandler{authenticator: a}
	itemsHandler := &ItemsHandler{authenticator: a}
	electricalHandler := &ElectricalHandler{authenticator: a}
	filesHandler := &FilesHandler{authenticator: a, BackupDir: cfg.BackupDir, LogPath: cfg.LogPath}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		LoggingMiddleware,
	)

	// Session.
	r.Post("/trylogin", authHandler.Login)
	r.Post("/isLoggedIn", authHandler.IsLoggedIn)
	r.Post("/checkToken", authHandler.CheckToken)

	// Users (admin only).
	r.Get("/getUsers", usersHandler.List)
	r.Post("/register", usersHandler.Create)
	r.Post("/updateUser", usersHandler.Update)
	r.Post("/deleteUser", usersHandler.Delete)

	// General items: reads are public, writes need a token.
	r.Get("/findAll", itemsHandler.List)
	r.Get("/find", itemsHandler.Find)
	r.Get("/fuzzyfind", itemsHandler.FuzzyFind)
	r.Get("/addItem", itemsHandler.Create)
	r.Get("/updateitem", itemsHandler.Update)
	r.Get("/remove", itemsHandler.Delete)
	r.Get("/increment", itemsHandler.Increment)
	r.Get("/decrement", itemsHandler.Decrement)

	// Electrical items.
	r.Get("/electricalFindActive", electricalHandler.FindActive)
	r.Get("/electricalFindPassive", electricalHandler.FindPassive)
	r.Get("/electricalFindAssembly", electricalHandler.FindAssembly)
	r.Get("/electricalFuzzyActive", electricalHandler.FuzzyActive)
	r.Get("/electricalFuzzyPassive", electricalHandler.FuzzyPassive)
	r.Get("/electricalFuzzyAssembly", electricalHandler.FuzzyAssembly)
	r.Post("/electricalFindBelowThreshold", electricalHandler.BelowThreshold)
	r.Post("/electricalAddItem", electricalHandler.Create)
	r.Post("/electricalUpdateItem", electricalHandler.Update)
	r.Post("/electricalRemovePassive", electricalHandler.RemovePassive)
	r.Post("/electricalRemoveActive", electricalHandler.RemoveActive)
	r.Post("/electricalIncrement", electricalHandler.Increment)
	r.Post("/electricalDecrement", electricalHandler.Decrement)
	r.Get("/getElectricalTooltip", electricalHandler.GetTooltip)
	r.Post("/setElectricalTooltip", electricalHandler.SetTooltip)
	r.Get("/getMultipliers", electricalHandler.GetMultipliers)
	r.Get("/updateMultipliers", electricalHandler.UpdateMultipliers)

	// Files and log (admin only).
	r.Get("/backupDatabase", filesHandler.Backup(kindGeneral))
	r.Get("/backupDatabaseElectrical", filesHandler.Backup(kindElectrical))
	r.Get("/getFiles", filesHandler.List(kindGeneral))
	r.Get("/getElectricalFiles", filesHandler.List(kindElectrical))
	r.Get("/restoreDatabase", filesHandler.Restore(kindGeneral))
	r.Get("/restoreDatabaseElectrical", filesHandler.Restore(kindElectrical))
	r.Post("/uploadFile", filesHandler.Import(kindGeneral, true))
	r.Post("/appendFile", filesHandler.Import(kindGeneral, false))
	r.Post("/uploadFileElectrical", filesHandler.Import(kindElectrical, true))
	r.Post("/appendFileElectrical", filesHandler.Import(kindElectrical, false))
	r.Get("/downloadFile", filesHandler.Download)
	r.Get("/get_log", filesHandler.Log)

	return r
}
