package mailer

// buildMessage is the default message hook. Every field is resolved before
// the body so that missing configuration fails before any rendering.
func buildMessage(e *Instance) (*Email, error) {
	kind, err := e.Kind()
	if err != nil {
		return nil, err
	}
	subject, err := e.Subject()
	if err != nil {
		return nil, err
	}
	from, err := e.From()
	if err != nil {
		return nil, err
	}
	to, err := e.To()
	if err != nil {
		return nil, err
	}
	cc, err := e.CC()
	if err != nil {
		return nil, err
	}
	bcc, err := e.BCC()
	if err != nil {
		return nil, err
	}
	replyTo, err := e.ReplyTo()
	if err != nil {
		return nil, err
	}
	headers, err := e.Headers()
	if err != nil {
		return nil, err
	}
	tags, err := e.Tags()
	if err != nil {
		return nil, err
	}
	attachments, err := e.Attachments()
	if err != nil {
		return nil, err
	}
	conn, err := e.Connection()
	if err != nil {
		return nil, err
	}

	body, err := e.Body()
	if err != nil {
		return nil, err
	}

	return &Email{
		connection:  conn,
		kind:        kind,
		Subject:     subject,
		Body:        body,
		From:        from,
		ReplyTo:     replyTo,
		To:          to,
		CC:          cc,
		BCC:         bcc,
		Headers:     headers,
		Tags:        tags,
		Attachments: attachments,
	}, nil
}

func defaultSendOptions(e *Instance) (SendOptions, error) {
	failSilently, err := e.FailSilently()
	if err != nil {
		return SendOptions{}, err
	}
	return SendOptions{FailSilently: failSilently}, nil
}

// Send builds the message and delivers it with the resolved send options.
// Returns the number of messages sent.
func (e *Instance) Send() (int, error) {
	msg, err := e.Message()
	if err != nil {
		return 0, err
	}
	opts, err := e.SendOptions()
	if err != nil {
		return 0, err
	}
	return msg.Send(e.ctx, opts)
}
