// Package main is a simple single-run fable process that talks to an
// MQTT broker.
//
// The command line args follow those for mosquito_sub.  Incoming
// messages on the command topic are Ops (see bridge.go); dialogue,
// choices, and errors are published to the output topic.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	var (
		// Follow mosquito_sub command line args.

		broker    = flag.String("h", "tcp://localhost", "Broker hostname")
		clientId  = flag.String("i", "", "Client id")
		port      = flag.Int("p", 1883, "Broker port")
		keepAlive = flag.Int("k", 600, "Keep-alive in seconds")
		userName  = flag.String("u", "", "Username")
		password  = flag.String("P", "", "Password")
		reconnect = flag.Bool("reconnect", false, "Automatically attempt to reconnect")
		clean     = flag.Bool("c", true, "Clean session")
		quiesce   = flag.Int("quiesce", 100, "Disconnection quiescence (in milliseconds)")

		certFilename = flag.String("cert", "", "Optional cert filename")
		keyFilename  = flag.String("key", "", "Optional key filename")
		insecure     = flag.Bool("insecure", false, "Skip broker cert checking")
		caFilename   = flag.String("cafile", "", "Optional CA cert filename")

		cmdTopic = flag.String("t", "fable/cmd", "command topic")
		outTopic = flag.String("o", "fable/out", "output topic")
		outQoS   = flag.Int("qos", 0, "output QoS")

		scriptDir     = flag.String("s", ".", "directory containing script files")
		stateFilename = flag.String("f", "fablemq.db", "state filename")
	)

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mqtt.ERROR = log.New(os.Stderr, "mqtt.error", 0)

	opts := mqtt.NewClientOptions()

	if *port != 0 {
		*broker = fmt.Sprintf("%s:%d", *broker, *port)
	}
	log.Printf("broker: %s", *broker)
	opts.AddBroker(*broker)
	opts.SetClientID(*clientId)
	opts.SetKeepAlive(time.Second * time.Duration(*keepAlive))
	opts.SetPingTimeout(10 * time.Second)

	opts.Username = *userName
	opts.Password = *password
	opts.AutoReconnect = *reconnect
	opts.CleanSession = *clean

	var rootCAs *x509.CertPool
	if rootCAs, _ = x509.SystemCertPool(); rootCAs == nil {
		rootCAs = x509.NewCertPool()
		log.Printf("Including system CA certs")
	}
	if *caFilename != "" {
		certs, err := ioutil.ReadFile(*caFilename)
		if err != nil {
			log.Fatalf("couldn't read '%s': %s", *caFilename, err)
		}

		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			log.Println("No certs appended, using system certs only")
		}
	}

	var certs []tls.Certificate
	if *keyFilename != "" {
		cert, err := tls.LoadX509KeyPair(*certFilename, *keyFilename)
		if err != nil {
			log.Fatal(err)
		}
		certs = []tls.Certificate{cert}
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: *insecure,
	}

	if rootCAs != nil {
		tlsConf.RootCAs = rootCAs
	}

	if certs != nil {
		tlsConf.Certificates = certs
	}

	opts.SetTLSConfig(tlsConf)

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost")
	}

	b, err := NewBridge(ctx, *scriptDir, *stateFilename, *outTopic, byte(*outQoS))
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close(ctx)

	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		b.inHandler(ctx, client, msg)
	}

	b.Client = mqtt.NewClient(opts)

	log.Printf("Attempting to connect to broker")
	if token := b.Client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}
	log.Printf("Connected to broker")

	log.Printf("Subscribing to %s", *cmdTopic)
	if t := b.Client.Subscribe(*cmdTopic, 1, nil); t.Wait() && t.Error() != nil {
		log.Fatal(t.Error())
	}
	log.Printf("Subscribed to %s", *cmdTopic)

	<-ctx.Done()

	log.Printf("Disconnecting")
	b.Client.Disconnect(uint(*quiesce))
}
