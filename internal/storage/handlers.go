package storage

import "github.com/gofiber/fiber/v2"

// RegisterRoutes serves files written by a Disk store. Remote stores
// hand out absolute URLs and need no route.
func RegisterRoutes(r fiber.Router, store Store) {
	disk, ok := store.(*Disk)
	if !ok {
		return
	}
	r.Static("/", disk.Root())
}
