// Package bot is the conversational front-end: it turns chat commands into
// scheduling engine calls and renders the replies.
package bot
