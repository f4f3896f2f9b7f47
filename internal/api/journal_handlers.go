package api

import (
	"strings"

	"progress/internal/models"
	"progress/internal/store"

	"github.com/gofiber/fiber/v2"
)

func CreateJournalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateJournalRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		content := strings.TrimSpace(req.Content)
		if content == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Content is required")
		}
		if req.Mood == "" {
			req.Mood = models.MoodNeutral
		}
		if !req.Mood.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid mood")
		}

		entry := models.JournalEntry{
			UserID:  currentUserID(c),
			Content: content,
			Mood:    req.Mood,
			Tags:    req.Tags,
		}
		rewards, err := d.Tracker.CreateJournalEntry(c.UserContext(), &entry)
		if err != nil {
			return mapError(err, "User")
		}
		return c.Status(fiber.StatusCreated).JSON(models.JournalResponse{Entry: entry, Rewards: rewards})
	}
}

// ListJournalHandler supports ?mood= and ?tag= filters.
func ListJournalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := store.JournalFilter{
			Mood: models.Mood(c.Query("mood")),
			Tag:  c.Query("tag"),
		}
		if filter.Mood != "" && !filter.Mood.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid mood")
		}

		entries, err := d.Store.ListJournalEntries(c.UserContext(), currentUserID(c), filter)
		if err != nil {
			return err
		}
		return c.JSON(entries)
	}
}

func GetJournalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entryID, err := paramID(c, "id", "entry")
		if err != nil {
			return err
		}
		entry, err := d.Store.GetJournalEntry(c.UserContext(), currentUserID(c), entryID)
		if err != nil {
			return mapError(err, "Journal entry")
		}
		return c.JSON(entry)
	}
}

func UpdateJournalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entryID, err := paramID(c, "id", "entry")
		if err != nil {
			return err
		}

		var req models.UpdateJournalRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		entry, err := d.Store.GetJournalEntry(c.UserContext(), currentUserID(c), entryID)
		if err != nil {
			return mapError(err, "Journal entry")
		}
		if req.Content != nil {
			content := strings.TrimSpace(*req.Content)
			if content == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Content is required")
			}
			entry.Content = content
		}
		if req.Mood != nil {
			if !req.Mood.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid mood")
			}
			entry.Mood = *req.Mood
		}
		if req.Tags != nil {
			entry.Tags = req.Tags
		}

		if err := d.Store.UpdateJournalEntry(c.UserContext(), &entry); err != nil {
			return mapError(err, "Journal entry")
		}
		return c.JSON(entry)
	}
}

func DeleteJournalHandler(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entryID, err := paramID(c, "id", "entry")
		if err != nil {
			return err
		}
		if err := d.Store.DeleteJournalEntry(c.UserContext(), currentUserID(c), entryID); err != nil {
			return mapError(err, "Journal entry")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
