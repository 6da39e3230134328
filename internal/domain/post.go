package domain

// MediaRef is a media attachment captured by the scraper.
type MediaRef struct {
	OriginalURL string `json:"originalUrl,omitempty"`
	URL         string `json:"url,omitempty"`
	LocalPath   string `json:"localPath,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// RawScrapedPost is a post as written to disk by the scraping collaborator.
// Field names follow the scraper's JSON output.
type RawScrapedPost struct {
	PostID           string     `json:"postId,omitempty"`
	Permalink        string     `json:"permalink,omitempty"`
	ScrapedAt        string     `json:"scrapedAt,omitempty"`
	PublishedAt      string     `json:"publishedAt,omitempty"`
	FullText         string     `json:"fullText,omitempty"`
	MediaURLs        []MediaRef `json:"mediaUrls,omitempty"`
	PosterName       string     `json:"posterName,omitempty"`
	PosterID         string     `json:"posterId,omitempty"`
	PosterProfileID  string     `json:"posterProfileId,omitempty"`
	PosterProfileURL string     `json:"posterProfileUrl,omitempty"`
	SharerName       string     `json:"sharerName,omitempty"`
	SharerID         string     `json:"sharerId,omitempty"`
	SharerProfileID  string     `json:"sharerProfileId,omitempty"`
	SharerProfileURL string     `json:"sharerProfileUrl,omitempty"`
	OriginalRecordID any        `json:"originalRecordId,omitempty"` // sheet row id, string or number
}

// IsShared reports whether the post was captured through a share.
func (p RawScrapedPost) IsShared() bool {
	return p.SharerName != ""
}
