package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestSendValidation(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)

	tests := []struct {
		name    string
		sender  uint64
		body    string
		wantErr error
	}{
		{"empty", 1, "", ErrMessageEmpty},
		{"whitespace only", 1, "   \n\t", ErrMessageEmpty},
		{"too long", 1, strings.Repeat("가", maxMessageLen+1), ErrMessageTooLong},
		{"at limit", 1, strings.Repeat("가", maxMessageLen), nil},
		{"non-member", 99, "hello", ErrNotParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.chat.Send(context.Background(), r.ID, tt.sender, tt.body)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send: err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendRejectsKickedMember(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2)
	if _, err := e.res.Kick(context.Background(), r.ID, 1, 2); err != nil {
		t.Fatalf("kick: %v", err)
	}

	if _, err := e.chat.Send(context.Background(), r.ID, 2, "still here?"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("kicked sender: err = %v, want ErrNotParticipant", err)
	}
}

func TestSequenceIsGaplessAndOrdered(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2) // system messages interleave with chat

	for i := 0; i < 5; i++ {
		if _, err := e.chat.Send(context.Background(), r.ID, 1, "ping"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	msgs, err := e.store.ListMessages(context.Background(), r.ID, 0, 100)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) == 0 {
		t.Fatal("no messages stored")
	}
	for i, m := range msgs {
		if m.Seq != uint64(i+1) {
			t.Fatalf("seq at index %d = %d, want %d (gapless from 1)", i, m.Seq, i+1)
		}
	}
}

func TestConcurrentSendsKeepSequenceGapless(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.chat.Send(context.Background(), r.ID, 1, "race"); err != nil {
				t.Errorf("send: %v", err)
			}
		}()
	}
	wg.Wait()

	msgs, err := e.store.ListMessages(context.Background(), r.ID, 0, 200)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	for i, m := range msgs {
		if m.Seq != uint64(i+1) {
			t.Fatalf("seq at index %d = %d, want %d", i, m.Seq, i+1)
		}
	}
}

func TestReadCursors(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2)
	e.mustJoin(t, r.ID, 3)

	// Users 1 and 2 are in the room; 3 is offline.
	e.ch.setPresent(r.ID, 1, 2)
	msg, err := e.chat.Send(context.Background(), r.ID, 1, "everyone here?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, uid := range []uint64{1, 2} {
		got, err := e.store.GetReadCursor(context.Background(), r.ID, uid)
		if err != nil {
			t.Fatalf("cursor user %d: %v", uid, err)
		}
		if got != msg.Seq {
			t.Errorf("cursor for present user %d = %d, want %d", uid, got, msg.Seq)
		}
	}

	unread, err := e.chat.Unread(context.Background(), r.ID, 3)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	// User 3 read up to their own join message; everything after counts.
	if unread == 0 {
		t.Error("offline user has 0 unread, want > 0")
	}

	seq, err := e.chat.MarkRead(context.Background(), r.ID, 3)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if seq != msg.Seq {
		t.Errorf("mark read landed on %d, want latest seq %d", seq, msg.Seq)
	}
	unread, err = e.chat.Unread(context.Background(), r.ID, 3)
	if err != nil {
		t.Fatalf("unread after mark: %v", err)
	}
	if unread != 0 {
		t.Errorf("unread after mark read = %d, want 0", unread)
	}
}

func TestCursorNeverMovesBackwards(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)

	if _, err := e.chat.MarkRead(context.Background(), r.ID, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	before, err := e.store.GetReadCursor(context.Background(), r.ID, 1)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}

	// A later send advances past the old mark; re-marking must not
	// regress below either value.
	if _, err := e.chat.Send(context.Background(), r.ID, 1, "newer"); err != nil {
		t.Fatalf("send: %v", err)
	}
	after, err := e.store.GetReadCursor(context.Background(), r.ID, 1)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if after < before {
		t.Errorf("cursor regressed from %d to %d", before, after)
	}
}

func TestHistoryPaging(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)

	for i := 0; i < 6; i++ {
		if _, err := e.chat.Send(context.Background(), r.ID, 1, "msg"); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	first, err := e.chat.History(context.Background(), r.ID, 1, 0, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first page = %d messages, want 3", len(first))
	}
	second, err := e.chat.History(context.Background(), r.ID, 1, first[len(first)-1].Seq, 100)
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(second) == 0 {
		t.Fatal("second page empty")
	}
	if second[0].Seq != first[len(first)-1].Seq+1 {
		t.Errorf("page 2 starts at seq %d, want %d", second[0].Seq, first[len(first)-1].Seq+1)
	}

	if _, err := e.chat.History(context.Background(), r.ID, 99, 0, 10); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger history: err = %v, want ErrNotParticipant", err)
	}
}

func TestAuthorize(t *testing.T) {
	e := newEnv(t)
	r := e.mustCreate(t, 1, 4)
	e.mustJoin(t, r.ID, 2)

	if err := e.chat.Authorize(context.Background(), r.ID, 2); err != nil {
		t.Errorf("member authorize: %v", err)
	}
	if err := e.chat.Authorize(context.Background(), r.ID, 99); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger authorize: err = %v, want ErrNotParticipant", err)
	}
	if _, err := e.res.Kick(context.Background(), r.ID, 1, 2); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if err := e.chat.Authorize(context.Background(), r.ID, 2); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("kicked authorize: err = %v, want ErrNotParticipant", err)
	}
}
