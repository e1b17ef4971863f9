package dispatch

import (
	"github.com/nextlevelbuilder/otcdesk/internal/bus"
	"github.com/nextlevelbuilder/otcdesk/internal/routing"
)

// FromInbound builds the routing input for a channel message. The first
// document and the first image attachment are carried over.
func FromInbound(msg bus.InboundMessage, isControl bool) routing.MessageContext {
	mc := routing.MessageContext{
		GroupID:        msg.ChatID,
		GroupName:      msg.ChatName,
		Text:           msg.Content,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		IsControlGroup: isControl,
	}

	var att routing.Attachment
	for _, a := range msg.Attachments {
		media := &routing.MediaMessage{Mimetype: a.ContentType, FileName: a.FileName, Caption: a.Caption}
		switch a.Kind {
		case bus.AttachmentDocument:
			if att.DocumentMessage == nil {
				att.DocumentMessage = media
			}
		case bus.AttachmentImage:
			if att.ImageMessage == nil {
				att.ImageMessage = media
			}
		}
	}
	if att.DocumentMessage != nil || att.ImageMessage != nil {
		mc.Attachment = &att
	}
	return mc
}
