package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/voyager-vpm/voyager/internal/httpvalidate"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// indexVersion and indexPackage mirror just enough of the published
// index's shape to collect every version's download URL; validate
// doesn't need to understand the rest of the document.
type indexVersion struct {
	Url string `json:"url"`
}

type indexPackage struct {
	Versions map[string]indexVersion `json:"versions"`
}

type indexDoc struct {
	Packages map[string]indexPackage `json:"packages"`
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every published download URL is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(a.cfg.OutputPath)
			if err != nil {
				return voyerr.FileRead(a.cfg.OutputPath, err)
			}

			var doc indexDoc
			if err := json.Unmarshal(content, &doc); err != nil {
				return voyerr.JsonParse(a.cfg.OutputPath, err)
			}

			var targets []httpvalidate.Target
			for packageID, pkg := range doc.Packages {
				for version, v := range pkg.Versions {
					targets = append(targets, httpvalidate.Target{PackageID: packageID, Version: version, URL: v.Url})
				}
			}

			checker := httpvalidate.New()
			result := checker.ValidateAll(cmd.Context(), targets, a.cfg.MaxConcurrent, a.cfg.MaxRetries)

			for _, invalid := range result.Invalid {
				a.log.Warn("URL validation failed", "package_id", invalid.PackageID, "version", invalid.Version, "url", invalid.URL)
			}

			a.log.Info("URL validation completed", "total", result.Total, "valid", result.Valid, "invalid", len(result.Invalid))

			if len(result.Invalid) > 0 {
				return voyerr.UrlValidation(len(result.Invalid))
			}
			a.log.Info("all valid", "total", result.Total)
			return nil
		},
	}
}
