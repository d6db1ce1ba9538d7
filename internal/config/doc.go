// Package config provides configuration parsing for kiln projects.
//
// The configuration is stored in kiln.json at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "name": "my-app",
//	  "server": {
//	    "host": "localhost",
//	    "port": 3000,
//	    "middleware": ["requestid", "recoverer", "logger", "security", "cors"]
//	  },
//	  "static": {
//	    "dir": "public",
//	    "cacheControl": "production"
//	  },
//	  "bundle": {
//	    "root": "src",
//	    "entries": ["main.js"],
//	    "extensions": [".js", ".mjs", ".ts", ".json"],
//	    "maxDepth": 64,
//	    "ignore": ["react", "react-dom"],
//	    "target": "browser",
//	    "hydration": true
//	  },
//	  "cache": {
//	    "maxEntries": 256,
//	    "ttl": "10m",
//	    "buildTimeout": "15s"
//	  },
//	  "distribution": {
//	    "path": "/_kiln/bundle",
//	    "cacheMaxAge": 300,
//	    "compression": ["br", "gzip"]
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
