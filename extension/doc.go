// Package extension provides the Forge extension for mounting Intake.
//
// The extension integrates Intake into the Forge application framework by:
//   - Initializing the Intake engine with a configured store
//   - Running database migrations on registration
//   - Mounting the ingestion and admin API routes under a configurable prefix
//   - Starting the dispatch engine on application start
//   - Gracefully stopping the engine on application shutdown
//
// Usage:
//
//	app := forge.New(
//	    forge.WithExtensions(
//	        extension.New(
//	            extension.WithStore(postgresStore),
//	            extension.WithPrefix("/intake"),
//	        ),
//	    ),
//	)
//	app.Run()
package extension
