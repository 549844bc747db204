package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	grpcapi "voice-intake-service/internal/api/grpc"
)

// scripted answers a full intake, including one rejected and one
// disconfirmed answer.
var scripted = []string{
	"My name is John Doe",
	"yes",
	"I live in Chennai",
	"no",
	"I live in Pune",
	"yes",
	"my wage is six hundred rupees",
	"yes",
	"one two three",
	"nine eight seven six five four three two one zero",
	"yes",
	"twenty five",
	"yes",
}

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	sessionID := flag.String("session", "", "Session ID (generated by the server when empty)")
	interactive := flag.Bool("i", false, "Read answers from stdin instead of the script")
	flag.Parse()

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverAddr)
	client := grpcapi.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := client.StartSession(ctx, *sessionID)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	id := field(res, "session_id")
	log.Printf("Session %s", id)
	say(res)

	next := scriptedAnswers()
	if *interactive {
		next = stdinAnswers()
	}

	for {
		answer, ok := next()
		if !ok {
			log.Println("No more answers, leaving the session open")
			return
		}
		fmt.Printf("caller:    %s\n", answer)

		res, err = client.ProcessTurn(ctx, id, answer)
		if err != nil {
			log.Fatalf("turn failed: %v", err)
		}
		say(res)

		if res.GetFields()["finished"].GetBoolValue() {
			log.Printf("Intake complete: record=%s", field(res, "record_id"))
			return
		}
	}
}

func say(res *structpb.Struct) {
	fmt.Printf("assistant: %s   [%s %s]\n", field(res, "assistant_text"), field(res, "state"), field(res, "current_field"))
}

func field(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func scriptedAnswers() func() (string, bool) {
	i := 0
	return func() (string, bool) {
		if i >= len(scripted) {
			return "", false
		}
		i++
		time.Sleep(300 * time.Millisecond)
		return scripted[i-1], true
	}
}

func stdinAnswers() func() (string, bool) {
	sc := bufio.NewScanner(os.Stdin)
	return func() (string, bool) {
		fmt.Print("> ")
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}
}
