// Package catalog maintains the local media index the encoder works
// against. Jellyfin and Plex clients scan the upstream library into
// movies, shows and episodes; the SQLite store caches them between
// scans; the scanner refreshes the store periodically or on demand; and
// the poster cache serves resized artwork thumbnails.
package catalog
