// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package plugin_test

import (
	"archive/zip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/internal/plugin/depgraph"
)

func economyDescriptor(version string) string {
	return `
name: Economy
version: "` + version + `"
main: com.example.economy.EconomyPlugin
api-version: "1.21"
dependencies:
  server:
    Core:
      load: BEFORE
`
}

func stageArchive(path string, files map[string]string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0o750)).To(Succeed())
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write([]byte(content))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(zw.Close()).To(Succeed())
	Expect(f.Close()).To(Succeed())
}

var _ = Describe("Plugin discovery", Ordered, func() {
	var (
		dir    string
		loader *plugins.Loader
		found  []plugins.Discovered
	)

	BeforeAll(func() {
		dir = GinkgoT().TempDir()
		stageArchive(filepath.Join(dir, "economy.jar"), map[string]string{
			plugins.PrimaryDescriptorFile: economyDescriptor("2.1.0"),
		})
		stageArchive(filepath.Join(dir, plugins.UpdateDirName, "economy.jar"), map[string]string{
			plugins.PrimaryDescriptorFile: economyDescriptor("3.0.0"),
		})
		stageArchive(filepath.Join(dir, "greeter.zip"), map[string]string{
			plugins.LegacyDescriptorFile: legacyYAML,
		})
		Expect(os.MkdirAll(filepath.Join(dir, "core"), 0o750)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "core", plugins.LegacyDescriptorFile),
			[]byte("name: Core\nversion: '1.0'\nmain: core.Main\n"), 0o600)).To(Succeed())

		var err error
		loader, err = plugins.NewLoader(dir, plugins.WithLoaderLogger(slog.New(slog.DiscardHandler)))
		Expect(err).NotTo(HaveOccurred())
	})

	It("applies staged updates", func() {
		applied, err := loader.ApplyUpdates(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(ConsistOf("economy.jar"))
		Expect(filepath.Join(dir, plugins.UpdateDirName, "economy.jar")).NotTo(BeAnExistingFile())
	})

	It("discovers the updated artifact", func() {
		var err error
		found, err = loader.Discover(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(3))

		versions := map[string]string{}
		for _, d := range found {
			Expect(d.Outcome.Loaded()).To(BeTrue(), d.Path)
			versions[d.Plugin.Key] = d.Plugin.Version
		}
		Expect(versions).To(HaveKeyWithValue("economy", "3.0.0"))
	})

	It("orders dependencies first", func() {
		reg := plugins.NewRegistry(slog.New(slog.DiscardHandler))
		for _, d := range found {
			Expect(reg.Add(d.Plugin)).To(Succeed())
		}
		order := depgraph.ComputeOrder(reg, slog.New(slog.DiscardHandler))

		Expect(order).To(ConsistOf("core", "economy", "greeter"))
		core := slices.Index(order, "core")
		Expect(core).To(BeNumerically("<", slices.Index(order, "economy")))
		Expect(core).To(BeNumerically("<", slices.Index(order, "greeter")))
	})
})
