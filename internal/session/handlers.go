// ABOUTME: Server message handlers that apply socket updates to the post index
// ABOUTME: Registered once per session on its dispatcher

package session

import (
	"github.com/2389/threadsync/internal/posts"
	"github.com/2389/threadsync/internal/protocol"
)

func (s *Session) registerHandlers() {
	d := s.dispatch
	d.Register(protocol.MessageInvalid, s.handleInvalid)
	d.Register(protocol.MessageSynchronise, s.handleSynchronised)
	d.Register(protocol.MessageInsertThread, s.handleInsertThread)
	d.Register(protocol.MessageInsertPost, s.handleInsertPost)
	d.Register(protocol.MessageBacklink, s.handleBacklink)
	d.Register(protocol.MessageAppend, s.handleAppend)
	d.Register(protocol.MessageSplice, s.handleSplice)
	d.Register(protocol.MessageInsertImage, s.handleInsertImage)
	d.Register(protocol.MessageBanned, s.handleBanned)
	d.Register(protocol.MessageDeletePost, s.handleDeletePost)
	d.Register(protocol.MessageNotification, s.handleNotification)

	d.Register(protocol.MessageBackspace, s.updatePost(func(p *posts.Post) {
		p.Body = posts.Backspace(p.Body)
	}))
	d.Register(protocol.MessageClosePost, s.updatePost(func(p *posts.Post) {
		p.Editing = false
	}))
	d.Register(protocol.MessageSpoiler, s.updatePost(func(p *posts.Post) {
		p.Spoilered = true
	}))
	d.Register(protocol.MessageDeleteImage, s.updatePost(func(p *posts.Post) {
		p.HasImage = false
		p.Spoilered = false
	}))
	d.Register(protocol.MessageLockThread, s.updatePost(func(p *posts.Post) {
		p.Locked = true
	}))
	d.Register(protocol.MessageUnlockThread, s.updatePost(func(p *posts.Post) {
		p.Locked = false
	}))
}

// updatePost builds a handler for messages whose payload is a bare post ID.
// Updates for posts that are not loaded are ignored.
func (s *Session) updatePost(fn func(p *posts.Post)) func(protocol.Message) error {
	return func(m protocol.Message) error {
		var id uint64
		if err := m.Unmarshal(&id); err != nil {
			return err
		}
		s.index.Update(id, fn)
		return nil
	}
}

// handleInvalid means the server rejected this client's state. Dropping the
// connection makes the next open resynchronise from scratch.
func (s *Session) handleInvalid(m protocol.Message) error {
	var reason string
	if len(m.Payload) > 0 {
		_ = m.Unmarshal(&reason)
	}
	s.logger.Error("server rejected client state", "reason", reason)
	s.conn.Drop()
	return nil
}

func (s *Session) handleSynchronised(m protocol.Message) error {
	var resp protocol.SyncResponse
	if len(m.Payload) > 0 {
		if err := m.Unmarshal(&resp); err != nil {
			return err
		}
	}
	if _, ok := s.sync.CaughtUp(); ok {
		s.logger.Info("synchronised", "recent", len(resp.Recent))
	}
	return nil
}

func (s *Session) handleInsertThread(m protocol.Message) error {
	var t protocol.Thread
	if err := m.Unmarshal(&t); err != nil {
		return err
	}
	if t.OP == 0 {
		t.OP = t.ID
	}
	p := toPost(t.Post)
	p.Subject = t.Subject
	s.insert(p)
	return nil
}

func (s *Session) handleInsertPost(m protocol.Message) error {
	var p protocol.Post
	if err := m.Unmarshal(&p); err != nil {
		return err
	}
	s.insert(toPost(p))
	return nil
}

func (s *Session) insert(p *posts.Post) {
	s.index.Insert(p)
	if s.hide.Apply(p.ID) {
		s.logger.Debug("inserted post hidden", "post", p.ID)
	}
}

func toPost(p protocol.Post) *posts.Post {
	out := &posts.Post{
		ID:      p.ID,
		OP:      p.OP,
		Board:   p.Board,
		Time:    p.Time,
		Body:    p.Body,
		Editing: p.Editing,
	}
	if len(p.Links) > 0 {
		out.Links = make(map[uint64]uint64, len(p.Links))
		for _, l := range p.Links {
			out.Links[l[0]] = l[1]
		}
	}
	return out
}

func (s *Session) handleBacklink(m protocol.Message) error {
	var b protocol.Backlink
	if err := m.Unmarshal(&b); err != nil {
		return err
	}
	s.index.AddBacklink(b.ID, b.By, b.ByOP)
	s.hide.Apply(b.By)
	return nil
}

func (s *Session) handleAppend(m protocol.Message) error {
	var a protocol.Append
	if err := m.Unmarshal(&a); err != nil {
		return err
	}
	s.index.Update(a[0], func(p *posts.Post) {
		p.Body = posts.AppendChar(p.Body, rune(a[1]))
	})
	return nil
}

func (s *Session) handleSplice(m protocol.Message) error {
	var sp protocol.Splice
	if err := m.Unmarshal(&sp); err != nil {
		return err
	}
	s.index.Update(sp.ID, func(p *posts.Post) {
		p.Body = posts.SpliceLastLine(p.Body, sp.Start, sp.Len, sp.Text)
	})
	return nil
}

func (s *Session) handleInsertImage(m protocol.Message) error {
	var img protocol.Image
	if err := m.Unmarshal(&img); err != nil {
		return err
	}
	s.index.Update(img.ID, func(p *posts.Post) {
		p.HasImage = true
		p.Spoilered = img.Spoiler
	})
	return nil
}

func (s *Session) handleBanned(m protocol.Message) error {
	var b protocol.Ban
	if err := m.Unmarshal(&b); err != nil {
		return err
	}
	s.index.Update(b.ID, func(p *posts.Post) {
		p.Banned = true
	})
	return nil
}

func (s *Session) handleDeletePost(m protocol.Message) error {
	var id uint64
	if err := m.Unmarshal(&id); err != nil {
		return err
	}
	s.index.Delete(id)
	return nil
}

// handleNotification forwards socket notifications to the same listeners as
// the notification stream. The stream's dedupe cache also covers these, so a
// reply announced on both channels is reported once.
func (s *Session) handleNotification(m protocol.Message) error {
	var n protocol.Notification
	if err := m.Unmarshal(&n); err != nil {
		return err
	}
	if s.seen != nil && s.seen.CheckAndMark(n.ID) {
		return nil
	}
	s.notifications.Emit(n)
	return nil
}
