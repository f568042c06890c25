package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"konferans/backend/internal/config"
	"konferans/backend/internal/rooms"
	"konferans/backend/internal/storage"

	"github.com/rs/zerolog"
)

const usage = `Usage: admin <command> [args]

Commands:
  credit <room_id>    add one credit to a live room
  show <room_id>      print a live room
  history [limit]     list recent room sessions (default 20)`

func main() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := config.LoadDotEnv(); err != nil {
		l.Debug().Err(err).Msg("No .env file loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		l.Fatal().Err(err).Msg("Invalid configuration")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	command := os.Args[1]

	switch command {
	case "credit":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin credit <room_id>")
			os.Exit(1)
		}
		svc := openRooms(ctx, cfg, l)
		roomID := os.Args[2]
		if err := creditRoom(ctx, svc, roomID); err != nil {
			l.Fatal().Err(err).Str("room_id", roomID).Msg("Error adding credit")
		}
		fmt.Printf("Room %s has been credited.\n", roomID)
	case "show":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin show <room_id>")
			os.Exit(1)
		}
		svc := openRooms(ctx, cfg, l)
		out, err := showRoom(ctx, svc, os.Args[2])
		if err != nil {
			l.Fatal().Err(err).Str("room_id", os.Args[2]).Msg("Error loading room")
		}
		fmt.Print(out)
	case "history":
		limit := 20
		if len(os.Args) > 2 {
			limit, err = strconv.Atoi(os.Args[2])
			if err != nil || limit <= 0 {
				fmt.Println("Invalid limit. Please provide a positive integer.")
				os.Exit(1)
			}
		}
		if cfg.DatabaseDSN == "" {
			l.Fatal().Msg("DATABASE_DSN is not set")
		}
		db, err := storage.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to connect database")
		}
		history, err := storage.NewPostgresHistory(db)
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to open history")
		}
		if err := printHistory(ctx, history, limit, os.Stdout); err != nil {
			l.Fatal().Err(err).Msg("Error listing history")
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func openRooms(ctx context.Context, cfg config.Config, l zerolog.Logger) *rooms.Service {
	if cfg.RedisAddr == "" {
		l.Fatal().Msg("REDIS_ADDR is not set")
	}
	rdb, err := storage.OpenRedis(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to connect Redis")
	}
	return rooms.NewService(storage.NewRedisStore(rdb, cfg.RoomKeyPrefix, nil), nil)
}

func creditRoom(ctx context.Context, svc *rooms.Service, roomID string) error {
	view, err := svc.GetRoomView(ctx, roomID)
	if err != nil {
		return err
	}
	if view == nil {
		return fmt.Errorf("room %s does not exist", roomID)
	}
	return svc.AddCredit(ctx, roomID)
}

func showRoom(ctx context.Context, svc *rooms.Service, roomID string) (string, error) {
	room, err := svc.Storage.Get(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room == nil {
		return "", fmt.Errorf("room %s does not exist", roomID)
	}

	d := rooms.Evaluate(room, svc.Now())
	var b strings.Builder
	fmt.Fprintf(&b, "room:     %s\n", room.ID)
	fmt.Fprintf(&b, "started:  %s (%.1f min ago)\n", room.StartTime.Format(time.RFC3339), d.ElapsedMinutes)
	fmt.Fprintf(&b, "credits:  %d\n", room.Credits)
	fmt.Fprintf(&b, "status:   %s\n", d.Verdict)
	fmt.Fprintf(&b, "users:    %s\n", strings.Join(room.Users, ", "))
	return b.String(), nil
}

func printHistory(ctx context.Context, h storage.History, limit int, out io.Writer) error {
	sessions, err := h.Recent(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tSTARTED\tENDED\tCREDITS\tPARTICIPANTS")
	for _, s := range sessions {
		ended := "-"
		if s.EndedAt != nil {
			ended = s.EndedAt.Format(time.RFC3339)
		}
		room := s.RoomID
		if s.Recreated {
			room += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", room, s.StartedAt.Format(time.RFC3339), ended, s.Credits, strings.Join(s.Participants, ","))
	}
	return w.Flush()
}
