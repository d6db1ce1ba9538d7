// Package build produces a deployable bundle tree for a kiln project.
//
// Every entry in bundle.entries is generated in parallel and written
// under a content-addressed name. The static directory is copied with
// the same fingerprinting, and manifest.json maps original names to the
// written ones so that pkg/assets can resolve them at runtime.
//
// # Usage
//
//	gen := bundle.NewGenerator(os.DirFS(cfg.BundleRootPath()))
//	result, err := build.New(cfg, gen, build.Options{}).Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Output Structure
//
//	dist/
//	├── public/
//	│   ├── main.1a2b3c4d.js      # bundle
//	│   ├── main.1a2b3c4d.js.map  # when source maps are on
//	│   ├── index.html            # HTML is copied unhashed
//	│   └── assets/               # static files with hashes
//	└── manifest.json
//
// # Manifest
//
//	{
//	  "main.js": "main.1a2b3c4d.js",
//	  "logo.png": "assets/logo.9f8e7d6c.png"
//	}
package build
