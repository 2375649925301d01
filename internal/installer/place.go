package installer

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// moduleSourceRoot finds the directory holding module domain folders inside
// an extracted archive. A custom_components/ directory wins when present;
// otherwise the archive root itself is treated as a single-domain layout
// only if it looks like one (contains a manifest.json).
func moduleSourceRoot(root string) (string, error) {
	if filepath.Base(root) == "custom_components" {
		return root, nil
	}
	cc := filepath.Join(root, "custom_components")
	if info, err := os.Stat(cc); err == nil && info.IsDir() {
		return cc, nil
	}
	if _, err := os.Stat(filepath.Join(root, "manifest.json")); err == nil {
		return root, nil
	}
	return "", fmt.Errorf("archive does not contain a custom_components directory or a manifest.json")
}

// placeModule installs every domain folder the archive carries into the
// components root, replacing existing installs of the same domain, and fans
// out brand icons.
func (ins *Installer) placeModule(root, repoName string) ([]string, error) {
	src, err := moduleSourceRoot(root)
	if err != nil {
		return nil, err
	}

	var domains []string
	if src == root && filepath.Base(root) != "custom_components" {
		// Bare layout with a manifest at the archive root: the domain is
		// derived from the repository name.
		domain := strings.ReplaceAll(strings.ToLower(repoName), "-", "_")
		if err := ins.installDomain(root, root, domain); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
		return domains, nil
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read module source: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		domain := e.Name()
		if err := ins.installDomain(root, filepath.Join(src, domain), domain); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("custom_components directory contains no domain folders")
	}
	sort.Strings(domains)
	return domains, nil
}

// installDomain replaces the domain's folder under the components root and
// syncs the archive's icons into the brands directory and the installed
// folder.
func (ins *Installer) installDomain(extractedRoot, srcDir, domain string) error {
	dest := filepath.Join(ins.paths.Components, domain)
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to clear existing install of %s: %w", domain, err)
	}
	if err := copyTree(srcDir, dest); err != nil {
		return fmt.Errorf("failed to install domain %s: %w", domain, err)
	}
	log.Printf("Installed module domain %s", domain)

	if err := ins.fanOutIcons(extractedRoot, srcDir, domain, dest); err != nil {
		// Icons are cosmetic; a failed fanout should not fail the install.
		log.Printf("Warning: could not install icons for %s: %v", domain, err)
	}
	return nil
}

// collectIcons gathers image files from the conventional locations: an
// icons/ folder at the archive root or inside the domain folder (either
// letter case), and the domain folder's own direct files.
func collectIcons(extractedRoot, domainSrc string) []string {
	var icons []string
	for _, dir := range []string{
		filepath.Join(extractedRoot, "icons"),
		filepath.Join(extractedRoot, "Icons"),
		filepath.Join(domainSrc, "icons"),
		filepath.Join(domainSrc, "Icons"),
		domainSrc,
	} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".png", ".svg":
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			icons = append(icons, filepath.Join(dir, n))
		}
	}
	return icons
}

// fanOutIcons copies the archive's icons into the brands directory and the
// installed folder, filling in the conventional icon.png / icon@2x.png /
// logo.png names. Files already present at a destination are left alone.
func (ins *Installer) fanOutIcons(extractedRoot, domainSrc, domain, installedDir string) error {
	icons := collectIcons(extractedRoot, domainSrc)
	if len(icons) == 0 {
		return nil
	}

	// Classify by exact conventional names. Any image serves as the main
	// icon when nothing is named for it.
	var mainIcon, icon2x, logo string
	for _, p := range icons {
		switch name := strings.ToLower(filepath.Base(p)); name {
		case "icon.png", "icon.svg":
			mainIcon = p
		case "icon@2x.png", "icon_2x.png":
			icon2x = p
		case "logo.png", "logo.svg":
			logo = p
		default:
			if mainIcon == "" {
				mainIcon = p
			}
		}
	}

	targets := []string{installedDir}
	if ins.paths.Brands != "" {
		brandDir := filepath.Join(ins.paths.Brands, domain)
		if err := os.MkdirAll(brandDir, 0755); err != nil {
			return err
		}
		targets = append(targets, brandDir)
	}

	for _, dir := range targets {
		for _, p := range icons {
			if err := copyFileIfAbsent(p, filepath.Join(dir, filepath.Base(p))); err != nil {
				return err
			}
		}
		for target, src := range map[string]string{
			"icon.png":    mainIcon,
			"icon@2x.png": icon2x,
			"logo.png":    logo,
		} {
			if src == "" {
				continue
			}
			if err := copyFileIfAbsent(src, filepath.Join(dir, target)); err != nil {
				return err
			}
		}
	}
	return nil
}

// placeWebAsset installs the archive's payload under the vendor folder and
// locates the main script to expose. The payload root is the first of:
// dist/, a folder named after the repo, the archive root.
func (ins *Installer) placeWebAsset(root, repoName string) (string, error) {
	src := root
	for _, candidate := range []string{"dist", repoName} {
		dir := filepath.Join(root, candidate)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			src = dir
			break
		}
	}

	dest := filepath.Join(ins.paths.Web, VendorFolder, repoName)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to clear existing install of %s: %w", repoName, err)
	}
	if err := copyTree(src, dest); err != nil {
		return "", fmt.Errorf("failed to install web asset %s: %w", repoName, err)
	}
	log.Printf("Installed web asset %s", repoName)

	mainScript, err := findMainScript(dest, repoName)
	if err != nil {
		return "", err
	}
	return mainScript, nil
}

// findMainScript picks the script a dashboard resource should reference:
// an exact <repo>.js at the root wins, then the alphabetically first
// root-level .js file, then the alphabetically first .js anywhere in the
// tree. Source maps never qualify.
func findMainScript(dest, repoName string) (string, error) {
	exact := repoName + ".js"
	if _, err := os.Stat(filepath.Join(dest, exact)); err == nil {
		return exact, nil
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", err
	}
	var rootScripts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isScript(e.Name()) {
			rootScripts = append(rootScripts, e.Name())
		}
	}
	if len(rootScripts) > 0 {
		sort.Strings(rootScripts)
		return rootScripts[0], nil
	}

	var nested []string
	err = filepath.WalkDir(dest, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isScript(d.Name()) {
			rel, relErr := filepath.Rel(dest, path)
			if relErr != nil {
				return relErr
			}
			nested = append(nested, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(nested) > 0 {
		sort.Strings(nested)
		return nested[0], nil
	}
	return "", fmt.Errorf("no JavaScript file found in %s", repoName)
}

func isScript(name string) bool {
	return strings.HasSuffix(name, ".js") && !strings.HasSuffix(name, ".map.js")
}

// placeTemplates merge-copies the archive's blueprints tree into the shared
// template root, overwriting same-named files but leaving siblings alone.
// An archive without a blueprints/ folder is rejected before anything is
// copied: a merge into the shared tree cannot be undone.
func (ins *Installer) placeTemplates(root string) error {
	src := root
	if filepath.Base(root) != "blueprints" {
		src = filepath.Join(root, "blueprints")
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			return fmt.Errorf("archive does not contain a blueprints directory")
		}
	}
	if err := os.MkdirAll(ins.paths.Templates, 0755); err != nil {
		return fmt.Errorf("failed to create template root: %w", err)
	}
	if err := copyTreeMerge(src, ins.paths.Templates); err != nil {
		return fmt.Errorf("failed to install templates: %w", err)
	}
	log.Printf("Installed template bundle into %s", ins.paths.Templates)
	return nil
}

// copyTree copies src into dest, which must not already exist.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

// copyTreeMerge copies src into an existing dest, overwriting files that
// collide and keeping everything else in place.
func copyTreeMerge(src, dest string) error {
	return copyTree(src, dest)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func copyFileIfAbsent(src, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	return copyFile(src, dest)
}
