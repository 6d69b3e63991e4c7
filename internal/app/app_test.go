package app

import (
	"os"
	"path/filepath"
	"testing"

	"NewsShorts/internal/config"
	"NewsShorts/internal/domain"
)

func TestCategoryAssets(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "sports.mp4")
	if err := os.WriteFile(base, []byte("video"), 0o600); err != nil {
		t.Fatalf("write base: %v", err)
	}

	got, err := categoryAssets(map[string]config.AssetConfig{
		"sports":     {BaseVideo: base, Audio: "anthem.mp3"},
		"technology": {Audio: "synth.mp3"},
	})
	if err != nil {
		t.Fatalf("categoryAssets: %v", err)
	}
	sports := got[domain.CategorySports]
	if sports.BaseVideo.Path != base || sports.Audio == nil || sports.Audio.Path != "anthem.mp3" {
		t.Fatalf("sports assets = %+v", sports)
	}
	if tech := got[domain.CategoryTechnology]; tech.BaseVideo.Path != "" || tech.Audio.Path != "synth.mp3" {
		t.Fatalf("technology assets = %+v", tech)
	}

	if _, err := categoryAssets(map[string]config.AssetConfig{"weather": {Audio: "x.mp3"}}); err == nil {
		t.Fatalf("expected unknown category error")
	}
	if _, err := categoryAssets(map[string]config.AssetConfig{"sports": {BaseVideo: "/missing.mp4"}}); err == nil {
		t.Fatalf("expected missing base video error")
	}
}
