/*
Package notify implements the notification channels for Vigil.

Three senders share the dispatcher's contract: Mailer (SMTP relay),
SMSSender (AWS SNS) and PushSender (HTTP push gateway). Channel
failures are isolated: the dispatcher attempts every enabled channel
and records a per-channel success bitmap on the incident timeline, so
one refused SMTP connection never suppresses an SMS.

Delivery is at-least-once per (incident, escalation_level, type,
channel); deduplication, if any, is the provider's concern.

Render builds all channel texts from the notification payload alone.
The payload was captured at enqueue time and carries the cause, the
monitor URL or task id, and the escalation level, so rendering needs
no database read.
*/
package notify
